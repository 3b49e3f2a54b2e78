package config

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// hclFile is the layout of a configuration file:
//
//	grid_size = 2048
//	seed      = 7
//	pattern   = "random"
//	mode      = "device"
//
//	host { workers = 8 }
//	device { backend = "kage" }
//	render {
//	  scale = 1
//	  alive = "#ffffff"
//	}
//	log { level = "debug" }
type hclFile struct {
	GridSize *int     `hcl:"grid_size,optional"`
	Seed     *int64   `hcl:"seed,optional"`
	Density  *float64 `hcl:"density,optional"`
	Pattern  *string  `hcl:"pattern,optional"`
	Mode     *string  `hcl:"mode,optional"`
	TPS      *int     `hcl:"tps,optional"`

	Host   *hclHost   `hcl:"host,block"`
	Device *hclDevice `hcl:"device,block"`
	Render *hclRender `hcl:"render,block"`
	Log    *hclLog    `hcl:"log,block"`
}

type hclHost struct {
	Workers *int `hcl:"workers,optional"`
}

type hclDevice struct {
	Backend *string `hcl:"backend,optional"`
}

type hclRender struct {
	Scale *int    `hcl:"scale,optional"`
	Alive *string `hcl:"alive,optional"`
	Dead  *string `hcl:"dead,optional"`
}

type hclLog struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

// DecodeHCL overlays the settings in src onto c. filename is used in
// diagnostics only.
func (c *Config) DecodeHCL(filename string, src []byte) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	setInt(&c.GridSize, parsed.GridSize)
	setInt64(&c.Seed, parsed.Seed)
	setFloat(&c.Density, parsed.Density)
	setString(&c.Pattern, parsed.Pattern)
	setString(&c.StartMode, parsed.Mode)
	setInt(&c.TPS, parsed.TPS)
	if h := parsed.Host; h != nil {
		setInt(&c.Workers, h.Workers)
	}
	if d := parsed.Device; d != nil {
		setString(&c.Backend, d.Backend)
	}
	if r := parsed.Render; r != nil {
		setInt(&c.Scale, r.Scale)
		setString(&c.AliveColor, r.Alive)
		setString(&c.DeadColor, r.Dead)
	}
	if l := parsed.Log; l != nil {
		setString(&c.LogLevel, l.Level)
		setString(&c.LogFormat, l.Format)
	}
	return nil
}

// LoadFile overlays the HCL file at path onto c.
func (c *Config) LoadFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return c.DecodeHCL(path, src)
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setInt64(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// Parse resolves a Config from args. Callers may register their own flags on
// fs beforehand. Precedence, lowest first: Default(backend), the file named
// by -config, explicit flags, then -set key=value overrides. The result is
// validated; flag.ErrHelp is returned unwrapped.
func Parse(fs *flag.FlagSet, args []string, backend string) (Config, error) {
	cfg := Default(backend)
	path := fs.String("config", "", "path to an HCL configuration file")
	overrides := KV{}
	fs.Var(overrides, "set", "override in key=value form (repeatable)")
	cfg.Bind(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *path != "" {
		fromFile := Default(backend)
		if err := fromFile.LoadFile(*path); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		// Re-apply only the flags the user actually passed.
		rebind := flag.NewFlagSet(fs.Name(), flag.ContinueOnError)
		rebind.SetOutput(io.Discard)
		fromFile.Bind(rebind)
		var setErr error
		fs.Visit(func(f *flag.Flag) {
			if target := rebind.Lookup(f.Name); target != nil && setErr == nil {
				setErr = target.Value.Set(f.Value.String())
			}
		})
		if setErr != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalid, setErr)
		}
		cfg = fromFile
	}

	if err := cfg.Apply(overrides); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
