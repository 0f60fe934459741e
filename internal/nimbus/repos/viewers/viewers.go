// Package viewers loads the definitions of remote content viewers from YAML,
// JSON or TOML files.
//
// A definitions file holds a list under the "viewers" key:
//
//	viewers:
//	  - name: docs
//	    template: "https://docs.google.com/viewer?url={url}"
//	    extensions: [".pdf", ".docx"]
package viewers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	"github.com/haukened/nimbus/internal/nimbus/domain"
)

// DefaultDocumentExtensions are the types handed to the document viewer when
// no definitions file is configured.
var DefaultDocumentExtensions = []string{
	".doc", ".pdf", ".ppt", ".pptx", ".docx", ".xls", ".xlsx", ".pages", ".ai",
	".psd", ".tiff", ".dxf", ".svg", ".eps", ".ps", ".ttf", ".xps", ".zip", ".rar",
}

// Defaults returns the built-in viewer set.
func Defaults() []domain.Viewer {
	return []domain.Viewer{{
		Name:       "gdocs",
		Template:   "https://docs.google.com/viewer?url=" + domain.ViewerPlaceholder,
		Extensions: append([]string(nil), DefaultDocumentExtensions...),
	}}
}

type viewerDef struct {
	Name       string   `koanf:"name" validate:"required"`
	Template   string   `koanf:"template" validate:"required,viewer_template"`
	Extensions []string `koanf:"extensions" validate:"required,min=1,dive,required"`
}

type viewerFile struct {
	Viewers []viewerDef `koanf:"viewers" validate:"required,min=1,dive"`
}

// validViewerTemplate accepts absolute http(s) templates with exactly one
// placeholder.
func validViewerTemplate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.Count(s, domain.ViewerPlaceholder) != 1 {
		return false
	}
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

// RegisterValidation adds the "viewer_template" tag to v.
func RegisterValidation(v *validator.Validate) error {
	return v.RegisterValidation("viewer_template", validViewerTemplate)
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported viewer file type %q", filepath.Ext(path))
	}
}

// Load reads viewer definitions from path. An empty path yields Defaults.
func Load(path string) ([]domain.Viewer, error) {
	if path == "" {
		return Defaults(), nil
	}
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load viewer file %s: %w", path, err)
	}
	var vf viewerFile
	if err := k.Unmarshal("", &vf); err != nil {
		return nil, fmt.Errorf("failed to decode viewer file %s: %w", path, err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&vf); err != nil {
		return nil, fmt.Errorf("viewer file %s: %w", path, err)
	}

	out := make([]domain.Viewer, 0, len(vf.Viewers))
	for _, d := range vf.Viewers {
		v := domain.Viewer{Name: d.Name, Template: d.Template, Extensions: d.Extensions}
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("viewer file %s: %w", path, err)
		}
		out = append(out, v)
	}
	return out, nil
}
