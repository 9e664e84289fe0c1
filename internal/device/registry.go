package device

import (
	"context"
	"fmt"
	"strings"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Accounts reports whether an account exists. auth.Service satisfies it.
type Accounts interface {
	AccountExists(ctx context.Context, id int64) (bool, error)
}

// Registry manages devices on behalf of their owners.
//
// It holds no state of its own; consistency comes from the repository
// (AUTOINCREMENT ids, the device_topics primary key), so all methods are
// safe for concurrent use.
type Registry struct {
	repo     Repository
	accounts Accounts
	logger   Logger
}

// NewRegistry creates a new device registry.
func NewRegistry(repo Repository, accounts Accounts) *Registry {
	return &Registry{
		repo:     repo,
		accounts: accounts,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register creates a device owned by ownerID. topics may be nil.
func (r *Registry) Register(ctx context.Context, ownerID int64, name string, topics []string) (*Device, error) {
	if err := r.checkOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	normalised, err := normaliseTopics(topics)
	if err != nil {
		return nil, err
	}

	d := &Device{
		OwnerID: ownerID,
		Name:    strings.TrimSpace(name),
		Topics:  normalised,
	}
	if err := r.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	r.logger.Info("device registered", "device_id", d.ID, "owner_id", ownerID, "topics", len(d.Topics))
	return d, nil
}

// Unregister deletes a device and returns its last known state.
func (r *Registry) Unregister(ctx context.Context, ownerID, deviceID int64) (*Device, error) {
	d, err := r.resolve(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}
	if err := r.repo.Delete(ctx, deviceID); err != nil {
		return nil, err
	}

	r.logger.Info("device unregistered", "device_id", deviceID, "owner_id", ownerID)
	return d, nil
}

// ListByOwner returns the owner's devices. An owner with no devices gets
// an empty slice.
func (r *Registry) ListByOwner(ctx context.Context, ownerID int64) ([]Device, error) {
	if err := r.checkOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	return r.repo.ListByOwner(ctx, ownerID)
}

// AddTopics registers the topics not yet present on the device, in input
// order. It fails with ErrTopicsAlreadyRegistered if there are none.
func (r *Registry) AddTopics(ctx context.Context, ownerID, deviceID int64, topics []string) (*TopicChange, error) {
	d, err := r.resolve(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}
	requested, err := normaliseTopics(topics)
	if err != nil {
		return nil, err
	}

	var added []string
	for _, t := range requested {
		if !d.HasTopic(t) {
			added = append(added, t)
		}
	}
	if len(added) == 0 {
		return nil, ErrTopicsAlreadyRegistered
	}

	if err := r.repo.AddTopics(ctx, deviceID, added); err != nil {
		return nil, err
	}

	r.logger.Info("device topics added", "device_id", deviceID, "topics", added)
	return &TopicChange{Count: len(added), Topics: added}, nil
}

// RemoveTopics unregisters the given topics that are present on the
// device. It fails with ErrTopicsNotRegistered if none are.
func (r *Registry) RemoveTopics(ctx context.Context, ownerID, deviceID int64, topics []string) (*TopicChange, error) {
	d, err := r.resolve(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(topics))
	var removed []string
	for _, t := range topics {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if d.HasTopic(t) {
			removed = append(removed, t)
		}
	}
	if len(removed) == 0 {
		return nil, ErrTopicsNotRegistered
	}

	if err := r.repo.RemoveTopics(ctx, deviceID, removed); err != nil {
		return nil, err
	}

	r.logger.Info("device topics removed", "device_id", deviceID, "topics", removed)
	return &TopicChange{Count: len(removed), Topics: removed}, nil
}

// CheckTopic confirms the owner may use topic on the device.
// It returns true or an error; it never returns false with a nil error.
func (r *Registry) CheckTopic(ctx context.Context, ownerID, deviceID int64, topic string) (bool, error) {
	d, err := r.resolve(ctx, ownerID, deviceID)
	if err != nil {
		return false, err
	}
	if !d.HasTopic(topic) {
		return false, fmt.Errorf("%w: %q", ErrTopicNotRegistered, topic)
	}
	return true, nil
}

// LookupTopic returns the device if topic is registered on it, without
// any owner check. It serves broker-side ingest where the broker is the
// trust boundary.
func (r *Registry) LookupTopic(ctx context.Context, deviceID int64, topic string) (*Device, error) {
	d, err := r.repo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if !d.HasTopic(topic) {
		return nil, fmt.Errorf("%w: %q", ErrTopicNotRegistered, topic)
	}
	return d, nil
}

// resolve loads a device on behalf of ownerID. The checks run in a fixed
// order: owner exists, device exists, device belongs to owner.
func (r *Registry) resolve(ctx context.Context, ownerID, deviceID int64) (*Device, error) {
	if err := r.checkOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	d, err := r.repo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if d.OwnerID != ownerID {
		r.logger.Warn("device access denied", "device_id", deviceID, "owner_id", ownerID)
		return nil, ErrNotOwner
	}
	return d, nil
}

func (r *Registry) checkOwner(ctx context.Context, ownerID int64) error {
	exists, err := r.accounts.AccountExists(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("checking owner: %w", err)
	}
	if !exists {
		return ErrOwnerNotFound
	}
	return nil
}
