package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const soundShaderJSON = `{"Shader":{"info":{"id":"abc123","name":"Bells","username":"someone"},
"renderpass":[
 {"type":"image","name":"Image","code":"void mainImage(out vec4 c, in vec2 p){}"},
 {"type":"common","name":"Common","code":"#define TAU 6.2831"},
 {"type":"sound","name":"Sound","code":"vec2 mainSound(int s, float t){ return vec2(sin(TAU*440.0*t)); }"}]}}`

func withServer(t *testing.T, h http.Handler) {
	t.Helper()
	ts := httptest.NewServer(h)
	oldAPI, oldRaw := shadertoyAPIURL, shadertoyRawURL
	shadertoyAPIURL, shadertoyRawURL = ts.URL+"/api/v1", ts.URL+"/shadertoy"
	t.Cleanup(func() {
		shadertoyAPIURL, shadertoyRawURL = oldAPI, oldRaw
		ts.Close()
	})
}

func TestShaderIDFromURL(t *testing.T) {
	cases := map[string]string{
		"abc123":                                 "abc123",
		"https://www.shadertoy.com/view/abc123":  "abc123",
		"https://www.shadertoy.com/view/abc123/": "abc123",
		"  abc123 ":                              "abc123",
	}
	for in, want := range cases {
		if got := shaderIDFromURL(in); got != want {
			t.Errorf("shaderIDFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShaderFromIDUsesAPI(t *testing.T) {
	withServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/shaders/abc123" || r.URL.Query().Get("key") != "k" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(soundShaderJSON))
	}))

	resp, err := ShaderFromID("k", "https://www.shadertoy.com/view/abc123", false)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.IsAPI {
		t.Error("response not marked as coming from the API")
	}

	args, err := SoundSource(resp)
	if err != nil {
		t.Fatal(err)
	}
	if args.Title != `"Bells" by someone` {
		t.Errorf("Title = %s", args.Title)
	}
	src := args.Source()
	if !strings.HasPrefix(src, "#define TAU") || !strings.Contains(src, "mainSound(int s, float t)") {
		t.Errorf("Source = %q", src)
	}
}

func TestShaderFromIDFallsBackToRaw(t *testing.T) {
	raw := []rawShader{{
		Info:          ShaderInfo{ID: "priv01", Name: "Hidden", Username: "x"},
		RawRenderPass: []rawRenderPass{{Type: "sound", Code: "vec2 mainSound(float t){ return vec2(0); }"}},
	}}
	rawJSON, _ := json.Marshal(raw)

	withServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/shaders/priv01":
			w.Write([]byte(`{"Error":"Shader not found"}`))
		case "/shadertoy":
			if r.Method != "POST" || !strings.Contains(r.FormValue("s"), "priv01") {
				http.Error(w, "bad raw request", http.StatusBadRequest)
				return
			}
			w.Write(rawJSON)
		default:
			http.NotFound(w, r)
		}
	}))

	resp, err := ShaderFromID("k", "priv01", false)
	if err != nil {
		t.Fatal(err)
	}
	if resp.IsAPI {
		t.Error("raw response marked as API")
	}
	args, err := SoundSource(resp)
	if err != nil {
		t.Fatal(err)
	}
	if args.CommonCode != "" || args.Source() != args.Code {
		t.Errorf("unexpected common code in %+v", args)
	}
}

func TestSoundSourceRequiresSoundPass(t *testing.T) {
	resp := &ShadertoyResponse{Shader: &Shader{
		Info:       ShaderInfo{ID: "img001"},
		RenderPass: []RenderPass{{Type: "image", Code: "void mainImage(){}"}},
	}}
	if _, err := SoundSource(resp); err == nil || !strings.Contains(err.Error(), "no sound pass") {
		t.Errorf("SoundSource error = %v", err)
	}
	if _, err := SoundSource(&ShadertoyResponse{}); err == nil {
		t.Error("SoundSource accepted a response without a shader")
	}
}
