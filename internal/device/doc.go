// Package device provides the Device Registry for devicehub.
//
// The registry is the only writer of devices and their topic sets. Every
// device belongs to exactly one account; operations other than LookupTopic
// are performed on behalf of an owner and are rejected for anyone else.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────┐
//	│                     Device Registry                    │
//	│                                                        │
//	│  ┌──────────────────┐        ┌──────────────────┐      │
//	│  │     Registry     │───────▶│    Repository    │      │
//	│  │  (registry.go)   │        │ (repository.go)  │      │
//	│  │ • owner checks   │        │ • devices        │      │
//	│  │ • topic set ops  │        │ • device_topics  │      │
//	│  └────────┬─────────┘        └──────────────────┘      │
//	│           │ AccountExists                               │
//	└───────────┼────────────────────────────────────────────┘
//	            ▼
//	   auth.Service (accounts)
//
// # Lookup order
//
// Owner-scoped operations resolve in a fixed order: the owner must exist
// (ErrOwnerNotFound), then the device (ErrDeviceNotFound), then the device
// must belong to the owner (ErrNotOwner).
//
// # Topics
//
// A device's topics form a set. Adding topics that are all present, or
// removing topics none of which are present, is rejected rather than
// silently accepted.
package device
