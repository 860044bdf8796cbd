package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testLog struct {
	Level string `default:"info"`
	Size  int    `default:"1048576"`
}

type testOptions struct {
	Debug     string
	Lookahead int64         `default:"16777216"`
	Timeout   time.Duration `default:"3s"`
	Strict    bool          `default:"true"`
	Log       testLog
}

func TestDefault(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		var opts testOptions
		if err := Parse(&opts, "QTMP4TEST", nil); err != nil {
			t.Error(err)
			return
		}
		if opts.Lookahead != 16777216 || opts.Timeout != 3*time.Second || !opts.Strict {
			t.Errorf("unexpected defaults %+v", opts)
			return
		}
		if opts.Log.Level != "info" || opts.Log.Size != 1048576 {
			t.Errorf("unexpected nested defaults %+v", opts.Log)
		}
	})
}

// TestPrecedence checks that a file value beats the default and the environment beats the file.
func TestPrecedence(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		t.Setenv("QTMP4TEST_LOG_LEVEL", "debug")
		var opts testOptions
		err := Parse(&opts, "QTMP4TEST", map[string]any{
			"lookahead": 1024,
			"log": map[string]any{
				"level": "error",
				"size":  10,
			},
		})
		if err != nil {
			t.Error(err)
			return
		}
		if opts.Lookahead != 1024 {
			t.Errorf("file value not applied: %d", opts.Lookahead)
		}
		if opts.Log.Level != "debug" {
			t.Errorf("env value should win over file, got %s", opts.Log.Level)
		}
		if opts.Log.Size != 10 {
			t.Errorf("nested file value not applied: %d", opts.Log.Size)
		}
	})
}

// TestModify checks that an override equal to the current value is not recorded.
func TestModify(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		var opts testOptions
		var conf Config
		conf.Parse(&opts, "QTMP4TEST")
		conf.ParseModifyFile(map[string]any{
			"strict": true,
		})
		if conf.Modify != nil {
			t.Fail()
		}
		conf.ParseModifyFile(map[string]any{
			"strict": false,
		})
		if conf.Modify == nil || opts.Strict {
			t.Fail()
		}
	})
}

func TestInvalidDuration(t *testing.T) {
	var opts testOptions
	if err := Parse(&opts, "QTMP4TEST", map[string]any{"timeout": "15"}); err == nil {
		t.Error("expected an error for a duration without unit")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("debug: qtmp4_tables\nlog:\n  level: warn\n"), 0644); err != nil {
		t.Fatal(err)
	}
	conf, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var opts testOptions
	if err = Parse(&opts, "QTMP4TEST", conf); err != nil {
		t.Error(err)
		return
	}
	if opts.Debug != "qtmp4_tables" || opts.Log.Level != "warn" {
		t.Errorf("unexpected values %+v", opts)
	}
}

func TestDefaults(t *testing.T) {
	t.Setenv("QTMP4TEST_STRICT", "false")
	t.Setenv("STRICT", "false")
	t.Setenv("_STRICT", "false")
	var opts testOptions
	if err := Defaults(&opts); err != nil {
		t.Error(err)
		return
	}
	if !opts.Strict || opts.Lookahead != 16777216 {
		t.Errorf("environment leaked into defaults %+v", opts)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("QTMP4TEST_DEBUG", "qtmp4_tables")
	var opts testOptions
	conf, err := Resolve(&opts, "QTMP4TEST", map[string]any{"lookahead": 2048}, map[string]any{
		"debug": "qtmp4_full",
		"log":   map[string]any{"level": "error"},
	})
	if err != nil {
		t.Error(err)
		return
	}
	if opts.Debug != "qtmp4_full" {
		t.Errorf("override should win over the environment, got %q", opts.Debug)
	}
	if opts.Lookahead != 2048 || opts.Log.Level != "error" {
		t.Errorf("unexpected values %+v", opts)
	}
	m := conf.GetMap()
	if m["lookahead"] != int64(2048) {
		t.Errorf("lookahead in map: %v", m["lookahead"])
	}
	if log, ok := m["log"].(map[string]any); !ok || log["level"] != "error" {
		t.Errorf("nested map: %v", m["log"])
	}
}
