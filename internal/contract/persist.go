package contract

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/phaserhq/phaser/internal/store"
)

// yamlRule mirrors the canonical contract YAML shape. Pattern is a pointer
// so patternless rules serialize as an explicit null.
type yamlRule struct {
	ID        string  `yaml:"id"`
	Type      string  `yaml:"type"`
	Severity  string  `yaml:"severity"`
	Pattern   *string `yaml:"pattern"`
	FileGlob  string  `yaml:"file_glob"`
	Message   string  `yaml:"message"`
	Rationale string  `yaml:"rationale"`
}

type yamlAuditSource struct {
	ID    string `yaml:"id"`
	Slug  string `yaml:"slug"`
	Date  string `yaml:"date"`
	Phase int    `yaml:"phase"`
}

type yamlContract struct {
	Version     int             `yaml:"version"`
	Enabled     bool            `yaml:"enabled"`
	CreatedAt   string          `yaml:"created_at"`
	AuditSource yamlAuditSource `yaml:"audit_source"`
	Rule        yamlRule        `yaml:"rule"`
}

// Marshal renders the contract in its canonical YAML shape.
func Marshal(c *Contract) ([]byte, error) {
	yc := yamlContract{
		Version:   c.Version,
		Enabled:   c.Enabled,
		CreatedAt: c.CreatedAt,
		AuditSource: yamlAuditSource{
			ID:    c.AuditSource.ID,
			Slug:  c.AuditSource.Slug,
			Date:  c.AuditSource.Date,
			Phase: c.AuditSource.Phase,
		},
		Rule: yamlRule{
			ID:        c.Rule.ID,
			Type:      string(c.Rule.Type),
			Severity:  string(c.Rule.Severity),
			FileGlob:  c.Rule.FileGlob,
			Message:   c.Rule.Message,
			Rationale: c.Rule.Rationale,
		},
	}
	if c.Rule.Type.NeedsPattern() {
		p := c.Rule.Pattern
		yc.Rule.Pattern = &p
	}
	return yaml.Marshal(&yc)
}

// Unmarshal parses and validates a contract from its YAML form.
func Unmarshal(data []byte) (*Contract, error) {
	var yc yamlContract
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, fmt.Errorf("parsing contract: %w", err)
	}
	c := &Contract{
		Version:   yc.Version,
		Enabled:   yc.Enabled,
		CreatedAt: yc.CreatedAt,
		AuditSource: AuditSource{
			ID:    yc.AuditSource.ID,
			Slug:  yc.AuditSource.Slug,
			Date:  yc.AuditSource.Date,
			Phase: yc.AuditSource.Phase,
		},
		Rule: Rule{
			ID:        yc.Rule.ID,
			Type:      RuleType(yc.Rule.Type),
			Severity:  Severity(yc.Rule.Severity),
			FileGlob:  yc.Rule.FileGlob,
			Message:   yc.Rule.Message,
			Rationale: yc.Rule.Rationale,
		},
	}
	if yc.Rule.Pattern != nil {
		c.Rule.Pattern = *yc.Rule.Pattern
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Save writes a contract to dir as {rule-id}.yaml via the atomic write.
func Save(dir string, c *Contract) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Version == 0 {
		c.Version = 1
	}
	if c.CreatedAt == "" {
		c.CreatedAt = store.NowTimestamp()
	}
	data, err := Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling contract %s: %w", c.Rule.ID, err)
	}
	return store.WriteAtomic(filepath.Join(dir, c.Rule.ID+".yaml"), data)
}

// LoadFile reads and validates one contract file.
func LoadFile(path string) (*Contract, error) {
	data, err := store.ReadLocked(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// SetEnabled flips the enabled flag of the contract in dir. Reapplying the
// same state is idempotent.
func SetEnabled(dir, ruleID string, enabled bool) error {
	path := filepath.Join(dir, ruleID+".yaml")
	c, err := LoadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("contract %s not found in %s", ruleID, dir)
		}
		return err
	}
	c.Enabled = enabled
	data, err := Marshal(c)
	if err != nil {
		return err
	}
	return store.WriteAtomic(path, data)
}
