package translator

import (
	"context"
	"fmt"
	"log"
	"sync"

	gst "github.com/richinsley/goshadertranslator"
)

var (
	once       sync.Once
	translator *gst.ShaderTranslator
	initErr    error

	// the wasm-backed translator is not safe for concurrent calls
	mu sync.Mutex
)

// GetTranslator returns the process-wide translator, creating it on first use.
func GetTranslator() (*gst.ShaderTranslator, error) {
	once.Do(func() {
		translator, initErr = gst.NewShaderTranslator(context.Background())
		if initErr != nil {
			initErr = fmt.Errorf("failed to create shader translator: %w", initErr)
			return
		}
		log.Println("Shader translator initialized successfully.")
	})
	return translator, initErr
}

// Fragment is a translated fragment stage: the code to hand to the driver and
// the translator's variable table, used to look up mapped uniform names.
type Fragment struct {
	Code      string
	Variables map[string]gst.ShaderVariable
}

// MappedName returns the name the driver sees for a source-level uniform.
func (f *Fragment) MappedName(name string) (string, bool) {
	v, ok := f.Variables[name]
	if !ok {
		return "", false
	}
	return v.MappedName, true
}

// TranslateFragment translates a WebGL2 fragment shader to desktop GLSL 4.10,
// or to ESSL when the target context is GLES.
func TranslateFragment(source string, isGLES bool) (*Fragment, error) {
	t, err := GetTranslator()
	if err != nil {
		return nil, err
	}

	outputFormat := gst.OutputFormatGLSL410
	if isGLES {
		outputFormat = gst.OutputFormatESSL
	}

	mu.Lock()
	defer mu.Unlock()
	fs, err := t.TranslateShader(source, "fragment", gst.ShaderSpecWebGL2, outputFormat)
	if err != nil {
		return nil, err
	}
	return &Fragment{Code: fs.Code, Variables: fs.Variables}, nil
}
