package convert

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"cssmui/config"
)

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context    string
	SourceFile string // source path relative to the source root, with forward slashes
	SourceDir  string // directory part of SourceFile, empty for top level
	Name       string // source base name without stylesheet extension
}

func newValues(name config.TemplateFieldName, src, ext string) Values {
	dir := filepath.ToSlash(filepath.Dir(src))
	if dir == "." {
		dir = ""
	}
	return Values{
		Context:    string(name),
		SourceFile: filepath.ToSlash(src),
		SourceDir:  dir,
		Name:       trimSourceExt(filepath.Base(src), ext),
	}
}

func expandTemplate(name config.TemplateFieldName, field string, values Values) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
