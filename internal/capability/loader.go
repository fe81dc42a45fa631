package capability

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/hyperhistory/internal/keys"
)

//go:embed schema.cue
var schemaCUE string

// Error codes for LoadError.
const (
	ErrCodeNotFound    = "E001"
	ErrCodeBuildFailed = "E002"
	ErrCodeSchema      = "E003"
	ErrCodeBadKey      = "E004"
)

// LoadError is a failure to load a capability file.
type LoadError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type fileConfig struct {
	Servers []serverConfig `json:"servers"`
}

type serverConfig struct {
	Identity string   `json:"identity"`
	Owner    string   `json:"owner,omitempty"`
	Admins   []string `json:"admins"`
}

// LoadFile reads a CUE capability file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading capability file: %v", err)}
	}
	return Load(data, path)
}

// Load parses CUE capability source, validates it against the embedded
// schema and builds a Registry. filename is used in error positions only.
func Load(data []byte, filename string) (*Registry, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile capability schema: %w", err)
	}

	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(ErrCodeBuildFailed, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(ErrCodeSchema, err)
	}

	var cfg fileConfig
	if err := unified.Decode(&cfg); err != nil {
		return nil, formatCUEError(ErrCodeSchema, err)
	}

	return build(cfg)
}

func build(cfg fileConfig) (*Registry, error) {
	r := NewRegistry()
	for i, s := range cfg.Servers {
		prefix := fmt.Sprintf("servers[%d]", i)

		server, err := parseKey(prefix+".identity", s.Identity)
		if err != nil {
			return nil, err
		}

		var owner keys.PublicKey
		if s.Owner != "" {
			if owner, err = parseKey(prefix+".owner", s.Owner); err != nil {
				return nil, err
			}
		}

		admins := make([]keys.PublicKey, 0, len(s.Admins))
		for j, a := range s.Admins {
			admin, err := parseKey(fmt.Sprintf("%s.admins[%d]", prefix, j), a)
			if err != nil {
				return nil, err
			}
			admins = append(admins, admin)
		}

		r.Register(server, owner, admins...)
	}
	return r, nil
}

func parseKey(field, text string) (keys.PublicKey, error) {
	pk, err := keys.ParsePublicKey(text)
	if err != nil {
		return keys.PublicKey{}, &LoadError{Code: ErrCodeBadKey, Field: field, Message: err.Error()}
	}
	return pk, nil
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(code string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}

	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
