package cookies

import (
	"time"

	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/scheduling"
)

const dayMillis = 86400000

// Option adjusts the attributes of a record written by Store.Set.
type Option func(*options)

type options struct {
	expiresInDays *float64
	expiresAt     time.Time
	path          string
	domain        string
	secure        bool
	sameSite      SameSite
}

// WithExpiresInDays expires the record days after now. It overrides WithExpiresAt.
func WithExpiresInDays(days float64) Option {
	return func(o *options) {
		o.expiresInDays = &days
		o.expiresAt = time.Time{}
	}
}

// WithExpiresAt expires the record at an absolute instant. It overrides WithExpiresInDays.
func WithExpiresAt(t time.Time) Option {
	return func(o *options) {
		o.expiresAt = t
		o.expiresInDays = nil
	}
}

func WithPath(path string) Option { return func(o *options) { o.path = path } }
func WithDomain(domain string) Option { return func(o *options) { o.domain = domain } }
func WithSecure(secure bool) Option { return func(o *options) { o.secure = secure } }
func WithSameSite(s SameSite) Option { return func(o *options) { o.sameSite = s } }

// Store reads and writes named records through a Jar. It performs no expiry
// validation of its own; callers that need validity embed it in the value.
type Store struct {
	jar      Jar
	clock    scheduling.Clock
	logger   *logging.ChanneledLogger
	defaults []Option
}

// NewStore builds a Store. defaults are applied before per-call options.
func NewStore(jar Jar, clock scheduling.Clock, logger *logging.ChanneledLogger, defaults ...Option) *Store {
	return &Store{
		jar:      jar,
		clock:    clock,
		logger:   logger,
		defaults: defaults,
	}
}

// Set writes name=value with the given attributes.
func (s *Store) Set(name, value string, opts ...Option) error {
	o := &options{}
	for _, opt := range s.defaults {
		opt(o)
	}
	for _, opt := range opts {
		opt(o)
	}

	record := Record{
		Name:     name,
		Value:    value,
		Path:     o.path,
		Domain:   o.domain,
		Secure:   o.secure,
		SameSite: o.sameSite,
	}
	switch {
	case o.expiresInDays != nil:
		record.Expires = s.clock.Now().Add(time.Duration(*o.expiresInDays*dayMillis) * time.Millisecond)
	case !o.expiresAt.IsZero():
		record.Expires = o.expiresAt
	}

	if err := s.jar.Store(record.String()); err != nil {
		s.logger.Cookies().Warn("Failed to store cookie record", "name", name, "error", err.Error())
		return err
	}
	return nil
}

// Get returns the decoded value of the first record named name.
func (s *Store) Get(name string) (string, bool) {
	encoded := Encode(name)
	for _, p := range splitHeader(s.jar.Header()) {
		if p.name == encoded {
			return Decode(p.value), true
		}
	}
	return "", false
}

// Remove discards name by rewriting it empty with an expiry in the past.
// Pass the path (and domain) the record was written with.
func (s *Store) Remove(name string, opts ...Option) error {
	opts = append(opts, WithExpiresAt(time.Unix(0, 0)))
	return s.Set(name, "", opts...)
}

// Exists reports whether a record named name is present.
func (s *Store) Exists(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// GetAll decodes every record of the header. The first record wins when a
// name repeats, matching Get.
func (s *Store) GetAll() map[string]string {
	all := make(map[string]string)
	for _, p := range splitHeader(s.jar.Header()) {
		name := Decode(p.name)
		if _, seen := all[name]; seen {
			continue
		}
		all[name] = Decode(p.value)
	}
	return all
}
