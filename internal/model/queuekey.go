package model

// QueueKey is an opaque 64-bit identifier minted by a QueueKeyManager. Keys
// are permanent for the lifetime of whatever they name and let managers
// route items without a string lookup on the hot path.
type QueueKey uint64

// InvalidQueueKey is returned by lookups that find nothing.
const InvalidQueueKey QueueKey = 0
