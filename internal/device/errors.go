package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotOwner) {
//	    // respond 401
//	}
var (
	// ErrOwnerNotFound is returned when the acting account does not exist.
	ErrOwnerNotFound = errors.New("device: owner not found")

	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrNotOwner is returned when the device belongs to another account.
	ErrNotOwner = errors.New("device: not owned by requester")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidTopic is returned when a topic is empty or malformed.
	ErrInvalidTopic = errors.New("device: invalid topic")

	// ErrTopicsAlreadyRegistered is returned when every topic to add is already present.
	ErrTopicsAlreadyRegistered = errors.New("device: topics are already registered")

	// ErrTopicsNotRegistered is returned when none of the topics to remove are present.
	ErrTopicsNotRegistered = errors.New("device: topics are not registered")

	// ErrTopicNotRegistered is returned when a single topic is not registered on the device.
	ErrTopicNotRegistered = errors.New("device: topic is not registered")
)
