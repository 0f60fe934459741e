package viewers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	vs, err := Load("")
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, "gdocs", vs[0].Name)
	assert.True(t, vs[0].Handles("https://files.test/report.xls"))
	assert.NoError(t, vs[0].Validate())
}

func TestDefaults_AreCopies(t *testing.T) {
	a := Defaults()
	a[0].Extensions[0] = ".mutated"
	assert.Equal(t, ".doc", Defaults()[0].Extensions[0])
}

func TestLoad_YAML(t *testing.T) {
	p := writeFile(t, "viewers.yaml", `
viewers:
  - name: office
    template: "https://view.office.test/op/view.aspx?src={url}"
    extensions: [".docx", ".xlsx"]
  - name: pdf
    template: "https://pdf.test/?file={url}"
    extensions: [".pdf"]
`)
	vs, err := Load(p)
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "office", vs[0].Name)
	assert.Equal(t, []string{".docx", ".xlsx"}, vs[0].Extensions)
	assert.Equal(t, "https://pdf.test/?file=https%3A%2F%2Fa.test%2Fx.pdf", vs[1].URLFor("https://a.test/x.pdf"))
}

func TestLoad_JSON(t *testing.T) {
	p := writeFile(t, "viewers.json", `{"viewers":[{"name":"pdf","template":"https://pdf.test/?file={url}","extensions":[".pdf"]}]}`)
	vs, err := Load(p)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, "pdf", vs[0].Name)
}

func TestLoad_TOML(t *testing.T) {
	p := writeFile(t, "viewers.toml", `
[[viewers]]
name = "pdf"
template = "https://pdf.test/?file={url}"
extensions = [".pdf"]
`)
	vs, err := Load(p)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, []string{".pdf"}, vs[0].Extensions)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"no placeholder":    `{"viewers":[{"name":"a","template":"https://v.test/","extensions":[".pdf"]}]}`,
		"not http":          `{"viewers":[{"name":"a","template":"file:///{url}","extensions":[".pdf"]}]}`,
		"missing name":      `{"viewers":[{"template":"https://v.test/{url}","extensions":[".pdf"]}]}`,
		"no extensions":     `{"viewers":[{"name":"a","template":"https://v.test/{url}","extensions":[]}]}`,
		"empty viewer list": `{"viewers":[]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "v.json", body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_UnsupportedExtensionAndMissingFile(t *testing.T) {
	_, err := Load(writeFile(t, "viewers.ini", "x=1"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
