package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config mirrors one field of a configuration struct. The effective value
// follows the precedence modify > env > file > default tag.
type Config struct {
	Ptr      reflect.Value
	Modify   any
	Env      any
	File     any
	Default  any
	Desc     string
	name     string
	propsMap map[string]*Config
	props    []*Config
	tag      reflect.StructTag
	errs     []error
	noEnv    bool
}

var durationType = reflect.TypeOf(time.Duration(0))

func (config *Config) Get(key string) (v *Config) {
	if config.propsMap == nil {
		config.propsMap = make(map[string]*Config)
	}
	if v, ok := config.propsMap[key]; ok {
		return v
	}
	v = &Config{
		name:  key,
		noEnv: config.noEnv,
	}
	config.propsMap[key] = v
	config.props = append(config.props, v)
	return v
}

func (config *Config) Has(key string) (ok bool) {
	if config.propsMap == nil {
		return false
	}
	_, ok = config.propsMap[strings.ToLower(key)]
	return ok
}

func (config *Config) GetValue() any {
	return config.Ptr.Interface()
}

// Parse reads the default tags and the environment. The environment key of a
// field is the prefix path joined with "_", e.g. QTMP4INFO_READER_RESYNCLOOKAHEAD.
func (config *Config) Parse(s any, prefix ...string) {
	var t reflect.Type
	var v reflect.Value
	if vv, ok := s.(reflect.Value); ok {
		t, v = vv.Type(), vv
	} else {
		t, v = reflect.TypeOf(s), reflect.ValueOf(s)
	}
	if t.Kind() == reflect.Pointer {
		t, v = t.Elem(), v.Elem()
	}

	config.Ptr = v
	config.Default = v.Interface()
	config.Desc = config.tag.Get("desc")

	if l := len(prefix); l > 0 {
		name := strings.ToLower(prefix[l-1])
		if tag := config.tag.Get("default"); tag != "" {
			if dv, err := config.assign(name, tag); err == nil {
				v.Set(dv)
				config.Default = v.Interface()
			} else {
				config.errs = append(config.errs, err)
			}
		}
		if envValue := os.Getenv(strings.Join(prefix, "_")); envValue != "" && !config.noEnv {
			if ev, err := config.assign(name, envValue); err == nil {
				v.Set(ev)
				config.Env = v.Interface()
			} else {
				config.errs = append(config.errs, err)
			}
		}
	}

	if t.Kind() == reflect.Struct {
		for i, j := 0, t.NumField(); i < j; i++ {
			ft, fv := t.Field(i), v.Field(i)
			if !ft.IsExported() {
				continue
			}
			name := strings.ToLower(ft.Name)
			if tag := ft.Tag.Get("yaml"); tag != "" {
				if tag == "-" {
					continue
				}
				name, _, _ = strings.Cut(tag, ",")
			}
			prop := config.Get(name)
			prop.tag = ft.Tag
			prop.Parse(fv, append(prefix, strings.ToUpper(ft.Name))...)
		}
	}
}

// ParseUserFile applies the values of a decoded yaml document.
func (config *Config) ParseUserFile(conf map[string]any) {
	if conf == nil {
		return
	}
	config.File = conf
	for k, v := range conf {
		k = strings.ToLower(k)
		if !config.Has(k) {
			continue
		}
		if prop := config.Get(k); prop.props != nil {
			if vmap, ok := v.(map[string]any); ok {
				prop.ParseUserFile(vmap)
			}
		} else if fv, err := prop.assign(k, v); err == nil {
			prop.File = fv.Interface()
			if prop.Env == nil {
				prop.Ptr.Set(fv)
			}
		} else {
			config.errs = append(config.errs, err)
		}
	}
}

// ParseModifyFile applies explicit overrides, e.g. command line flags.
func (config *Config) ParseModifyFile(conf map[string]any) {
	if conf == nil {
		return
	}
	config.Modify = conf
	for k, v := range conf {
		k = strings.ToLower(k)
		if !config.Has(k) {
			continue
		}
		if prop := config.Get(k); prop.props != nil {
			if vmap, ok := v.(map[string]any); ok {
				prop.ParseModifyFile(vmap)
				if len(vmap) == 0 {
					delete(conf, k)
				}
			}
		} else if mv, err := prop.assign(k, v); err == nil {
			v = mv.Interface()
			vwm := prop.valueWithoutModify()
			if equal(vwm, v) {
				delete(conf, k)
				if prop.Modify != nil {
					prop.Modify = nil
					prop.Ptr.Set(reflect.ValueOf(vwm))
				}
				continue
			}
			prop.Modify = v
			prop.Ptr.Set(mv)
		} else {
			config.errs = append(config.errs, err)
		}
	}
	if len(conf) == 0 {
		config.Modify = nil
	}
}

func (config *Config) valueWithoutModify() any {
	if config.Env != nil {
		return config.Env
	}
	if config.File != nil {
		return config.File
	}
	return config.Default
}

func equal(vwm, v any) bool {
	switch reflect.TypeOf(vwm).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return reflect.DeepEqual(vwm, v)
	}
	return vwm == v
}

// Err returns the first value that could not be converted, if any.
func (config *Config) Err() error {
	if len(config.errs) > 0 {
		return config.errs[0]
	}
	for _, prop := range config.props {
		if err := prop.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (config *Config) GetMap() map[string]any {
	m := make(map[string]any)
	for k, v := range config.propsMap {
		if v.props != nil {
			if vv := v.GetMap(); vv != nil {
				m[k] = vv
			}
		} else if v.GetValue() != nil {
			m[k] = v.GetValue()
		}
	}
	if len(m) > 0 {
		return m
	}
	return nil
}

var regexPureNumber = regexp.MustCompile(`^\d+$`)

func (config *Config) assign(k string, v any) (target reflect.Value, err error) {
	ft := config.Ptr.Type()
	source := reflect.ValueOf(v)
	if ft == durationType {
		target = reflect.New(ft).Elem()
		if !source.IsValid() || source.IsZero() {
			target.SetInt(0)
		} else if source.Type() == durationType {
			target.Set(source)
		} else {
			timeStr := fmt.Sprint(v)
			d, perr := time.ParseDuration(timeStr)
			if perr != nil || regexPureNumber.MatchString(timeStr) {
				return target, fmt.Errorf("invalid duration %q for %s, add a unit (ms,s,m,h)", timeStr, k)
			}
			target.SetInt(int64(d))
		}
		return
	}
	tmpStruct := reflect.StructOf([]reflect.StructField{
		{
			Name: strings.ToUpper(k),
			Type: ft,
		},
	})
	tmpValue := reflect.New(tmpStruct)
	if v != nil {
		var out []byte
		if vv, ok := v.(string); ok {
			out = []byte(fmt.Sprintf("%s: %s", k, vv))
		} else {
			out, _ = yaml.Marshal(map[string]any{k: v})
		}
		if err = yaml.Unmarshal(out, tmpValue.Interface()); err != nil {
			return tmpValue.Elem().Field(0), fmt.Errorf("%s: %w", k, err)
		}
	}
	target = tmpValue.Elem().Field(0)
	return
}

// Resolve fills target from its default tags, the optional yaml document, the
// environment under prefix and the optional overrides. Later sources win.
func Resolve(target any, prefix string, file, modify map[string]any) (*Config, error) {
	var c Config
	c.Parse(target, prefix)
	c.ParseUserFile(file)
	c.ParseModifyFile(modify)
	return &c, c.Err()
}

func Parse(target any, prefix string, file map[string]any) error {
	_, err := Resolve(target, prefix, file, nil)
	return err
}

// Defaults fills target from its default tags only.
func Defaults(target any) error {
	c := Config{noEnv: true}
	c.Parse(target, "")
	return c.Err()
}

// LoadFile decodes a yaml file into a generic map for ParseUserFile.
func LoadFile(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var conf map[string]any
	if err = yaml.Unmarshal(content, &conf); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return conf, nil
}
