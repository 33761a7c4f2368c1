package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestExtract_HTML(t *testing.T) {
	path := writeFile(t, "page.html", []byte(`
		<html>
			<head><title>Test Page</title><script>var x = 1;</script></head>
			<body>
				<nav>Home | About</nav>
				<main>
					<h1>Test Content</h1>
					<p>This is a   test paragraph.</p>
					<p>Accept Cookies</p>
				</main>
			</body>
		</html>
	`))

	text, err := New().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Test Content This is a test paragraph.", text)
}

func TestExtract_HTMLFallsBackToBody(t *testing.T) {
	path := writeFile(t, "page.html", []byte(`<html><body><div>Plain body text</div></body></html>`))

	text, err := New().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Plain body text", text)
}

func TestExtract_PlainText(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("Capítulo 1: Introducción\n\nTexto del capítulo."))

	text, err := New().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Capítulo 1: Introducción\n\nTexto del capítulo.", text)
}

func TestExtract_Unsupported(t *testing.T) {
	path := writeFile(t, "image.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))

	_, err := New().Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedContent)
}

func TestExtract_MalformedPDF(t *testing.T) {
	path := writeFile(t, "broken.pdf", []byte("%PDF-1.4\nthis is not a real pdf body\n"))

	_, err := New().Extract(context.Background(), path)
	assert.Error(t, err)
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := New().Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestCleanContent(t *testing.T) {
	assert.Equal(t, "Docs here", cleanContent("  Docs \n here  Privacy Policy "))
}
