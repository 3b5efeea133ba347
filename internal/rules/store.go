package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/phuslu/log"

	"github.com/a3tai/order-intake/internal/security"
)

const (
	fileExt = ".json"

	// DefaultDirPerm is used when the rules directory is created.
	DefaultDirPerm = 0o750
	// DefaultFilePerm is used for rule files.
	DefaultFilePerm = 0o640
)

var (
	// ErrCustomerConflict is returned when creating a customer that exists.
	ErrCustomerConflict = errors.New("customer already exists")
	// ErrCustomerNotFound is returned when deleting a customer that does not exist.
	ErrCustomerNotFound = errors.New("customer not found")
)

// Store keeps one JSON rule file per customer in a directory. Writes replace
// the file atomically, so concurrent readers see either the old or the new
// rules and the last completed write wins.
type Store struct {
	paths  *security.PathValidator
	logger *log.Logger
}

// NewStore opens (and creates if needed) the rules directory.
func NewStore(dir string, logger *log.Logger) (*Store, error) {
	paths, err := security.NewPathValidator(dir)
	if err != nil {
		return nil, fmt.Errorf("rules directory: %w", err)
	}

	if err := os.MkdirAll(paths.Root(), DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("create rules directory %s: %w", paths.Root(), err)
	}

	if logger == nil {
		logger = &log.DefaultLogger
	}

	return &Store{paths: paths, logger: logger}, nil
}

// Dir returns the absolute rules directory.
func (s *Store) Dir() string {
	return s.paths.Root()
}

// List returns all customer ids in ascending order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.paths.Root())
	if err != nil {
		return nil, fmt.Errorf("read rules directory: %w", err)
	}

	customers := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
			continue
		}
		customers = append(customers, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(customers)

	return customers, nil
}

// Search returns the customers whose id fuzzily matches query, best match
// first. An empty query returns the full listing.
func (s *Store) Search(query string) ([]string, error) {
	customers, err := s.List()
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return customers, nil
	}

	ranks := fuzzy.RankFindNormalizedFold(query, customers)
	sort.Stable(ranks)

	out := make([]string, len(ranks))
	for i, r := range ranks {
		out[i] = r.Target
	}
	return out, nil
}

// Exists reports whether a rule file exists for customer.
func (s *Store) Exists(customer string) (bool, error) {
	path, err := s.path(customer)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat rules for %s: %w", customer, err)
	}
}

// Load returns the rules for customer, or an empty set if none are stored.
func (s *Store) Load(customer string) (*RuleSet, error) {
	path, err := s.path(customer)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rules for %s: %w", customer, err)
	}

	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load rules for %s: %w", customer, err)
	}
	return rs, nil
}

// Save replaces the rules for customer.
func (s *Store) Save(customer string, rs *RuleSet) error {
	path, err := s.path(customer)
	if err != nil {
		return err
	}

	data, err := Encode(rs)
	if err != nil {
		return fmt.Errorf("encode rules for %s: %w", customer, err)
	}

	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("save rules for %s: %w", customer, err)
	}

	s.logger.Info().Str("customer", customer).Int("fields", rs.Len()).Msg("rules saved")
	return nil
}

// Create adds a new customer holding a copy of base (nil means no rules).
func (s *Store) Create(customer string, base *RuleSet) error {
	exists, err := s.Exists(customer)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrCustomerConflict, customer)
	}

	if base == nil {
		base = New()
	}
	return s.Save(customer, base.Clone())
}

// Delete removes the customer's rule file.
func (s *Store) Delete(customer string) error {
	path, err := s.path(customer)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrCustomerNotFound, customer)
		}
		return fmt.Errorf("delete rules for %s: %w", customer, err)
	}

	s.logger.Info().Str("customer", customer).Msg("customer deleted")
	return nil
}

func (s *Store) path(customer string) (string, error) {
	name, err := NormalizeCustomer(customer)
	if err != nil {
		return "", err
	}
	return s.paths.Join(name + fileExt)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".rules-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, DefaultFilePerm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
