package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Endpoints are variables so tests can point them at a local server.
var (
	shadertoyAPIURL = "https://www.shadertoy.com/api/v1"
	shadertoyRawURL = "https://www.shadertoy.com/shadertoy"
)

// Global client with a custom User-Agent header.
var httpClient = &http.Client{
	Transport: &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	},
}

type headerTransport struct {
	Transport http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "https://github.com/richinsley/goshadersound")
	}
	return t.Transport.RoundTrip(req)
}

func init() {
	httpClient.Transport = &headerTransport{Transport: http.DefaultTransport}
}

// --- Structs for Shadertoy API Response ---

type ShadertoyResponse struct {
	Shader *Shader `json:"Shader"`
	Error  string  `json:"Error,omitempty"`
	IsAPI  bool    `json:"isAPI,omitempty"` // false when served by the raw endpoint
}

type Shader struct {
	Info       ShaderInfo   `json:"info"`
	RenderPass []RenderPass `json:"renderpass"`
}

type ShaderInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type RenderPass struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// raw shader data is ever so slightly different from the API response.
type rawShaderResponse []rawShader

type rawShader struct {
	Info          ShaderInfo      `json:"info"`
	RawRenderPass []rawRenderPass `json:"renderpass"`
}

type rawRenderPass struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func rawShaderToShader(raw rawShader) *Shader {
	shader := &Shader{
		Info:       raw.Info,
		RenderPass: make([]RenderPass, len(raw.RawRenderPass)),
	}
	for i, rPass := range raw.RawRenderPass {
		shader.RenderPass[i] = RenderPass{Code: rPass.Code, Name: rPass.Name, Type: rPass.Type}
	}
	return shader
}

// SoundArgs is what the renderer needs from a Shadertoy shader.
type SoundArgs struct {
	Code       string // sound pass
	CommonCode string // shared "common" tab, may be empty
	Title      string
}

// Source is the common code followed by the sound pass, the order
// Shadertoy compiles them in.
func (a *SoundArgs) Source() string {
	if a.CommonCode == "" {
		return a.Code
	}
	return a.CommonCode + "\n" + a.Code
}

// SoundSource extracts the sound pass and common code. It fails for shaders
// that only draw pictures.
func SoundSource(shaderData *ShadertoyResponse) (*SoundArgs, error) {
	if shaderData == nil || shaderData.Shader == nil {
		return nil, fmt.Errorf("shader data must have a 'Shader' key")
	}

	args := &SoundArgs{}
	found := false
	for _, rPass := range shaderData.Shader.RenderPass {
		switch rPass.Type {
		case "sound":
			args.Code = rPass.Code
			found = true
		case "common":
			args.CommonCode = rPass.Code
		}
	}

	info := shaderData.Shader.Info
	if !found {
		return nil, fmt.Errorf("shader %s has no sound pass", info.ID)
	}
	args.Title = fmt.Sprintf(`"%s" by %s`, info.Name, info.Username)
	return args, nil
}

// getAPIKey retrieves the Shadertoy API key from the environment and validates it.
func getAPIKey() (string, error) {
	key := os.Getenv("SHADERTOY_KEY")
	if key == "" {
		return "", fmt.Errorf("SHADERTOY_KEY environment variable not set. See https://www.shadertoy.com/howto#q2")
	}

	testURL := fmt.Sprintf("%s/shaders/query/test?key=%s", shadertoyAPIURL, key)
	resp, err := httpClient.Get(testURL)
	if err != nil {
		return "", fmt.Errorf("API key test request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to use ShaderToy API with key, status code: %d", resp.StatusCode)
	}

	var apiError ShadertoyResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiError); err != nil {
		return "", fmt.Errorf("failed to decode API key test response: %w", err)
	}
	if apiError.Error != "" {
		return "", fmt.Errorf("failed to use ShaderToy API with key: %s", apiError.Error)
	}
	return key, nil
}

// getCacheDir determines the appropriate OS-specific cache directory.
func getCacheDir(subdir string) (string, error) {
	var baseCacheDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		baseCacheDir = os.Getenv("LOCALAPPDATA")
		if baseCacheDir == "" {
			err = fmt.Errorf("LOCALAPPDATA environment variable not set")
		}
	case "darwin":
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			err = fmt.Errorf("HOME environment variable not set")
		} else {
			baseCacheDir = filepath.Join(homeDir, "Library", "Caches")
		}
	default: // linux, bsd, etc.
		baseCacheDir = os.Getenv("XDG_CACHE_HOME")
		if baseCacheDir == "" {
			homeDir := os.Getenv("HOME")
			if homeDir == "" {
				err = fmt.Errorf("HOME environment variable not set")
			} else {
				baseCacheDir = filepath.Join(homeDir, ".cache")
			}
		}
	}

	if err != nil {
		return "", err
	}

	cacheDir := filepath.Join(baseCacheDir, "goshadersound", subdir)
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory at %s: %w", cacheDir, err)
	}
	return cacheDir, nil
}

// shaderIDFromURL accepts either a bare ID or a shadertoy.com/view/ URL.
func shaderIDFromURL(idOrURL string) string {
	id := strings.TrimSuffix(strings.TrimSpace(idOrURL), "/")
	if strings.Contains(id, "/") {
		id = filepath.Base(id)
	}
	return id
}

func readCachedShader(cachePath string) (*ShadertoyResponse, error) {
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached shader file %s: %w", cachePath, err)
	}
	var shaderResp ShadertoyResponse
	if err := json.Unmarshal(data, &shaderResp); err != nil {
		return nil, fmt.Errorf("failed to decode cached shader JSON: %w", err)
	}
	if shaderResp.Error != "" {
		return nil, fmt.Errorf("cached shader has error: %s", shaderResp.Error)
	}
	if shaderResp.Shader == nil {
		return nil, fmt.Errorf("cached shader JSON is invalid: 'Shader' key is missing")
	}
	return &shaderResp, nil
}

// ShaderFromID fetches a shader's JSON data from Shadertoy.com by its ID or
// URL. Shaders not published to the API are retried through the raw
// endpoint the website uses.
func ShaderFromID(apikey string, idOrURL string, useCache bool) (*ShadertoyResponse, error) {
	shaderID := shaderIDFromURL(idOrURL)
	if shaderID == "" {
		return nil, fmt.Errorf("empty shader ID")
	}

	var cachePath string
	if useCache {
		cacheDir, err := getCacheDir("shaders")
		if err != nil {
			return nil, fmt.Errorf("could not get cache directory: %w", err)
		}
		cachePath = filepath.Join(cacheDir, shaderID+".json")
		if _, err := os.Stat(cachePath); err == nil {
			return readCachedShader(cachePath)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to check cached shader file %s: %w", cachePath, err)
		}
	}

	if apikey == "" {
		var err error
		apikey, err = getAPIKey()
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequest("GET", fmt.Sprintf("%s/shaders/%s", shadertoyAPIURL, shaderID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	q := req.URL.Query()
	q.Add("key", apikey)
	req.URL.RawQuery = q.Encode()

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to shadertoy API failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to load shader %s, status code: %d", shaderID, resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read shader response: %w", err)
	}
	var shaderResp ShadertoyResponse
	if err := json.Unmarshal(bodyBytes, &shaderResp); err != nil {
		return nil, fmt.Errorf("failed to decode shader JSON: %w", err)
	}

	if shaderResp.Error != "" {
		log.Printf("Warning: Shadertoy API error for %s: %s (is it public+api?)", shaderID, shaderResp.Error)
		rawData, err := GetRawAPIShaderData(shaderID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch raw shader data for %s: %w", shaderID, err)
		}
		var rawResp rawShaderResponse
		if err := json.Unmarshal([]byte(rawData), &rawResp); err != nil {
			return nil, fmt.Errorf("failed to decode raw shader JSON: %w", err)
		}
		if len(rawResp) == 0 {
			return nil, fmt.Errorf("raw shader response is empty for %s", shaderID)
		}
		shaderResp = ShadertoyResponse{Shader: rawShaderToShader(rawResp[0])}
	} else {
		shaderResp.IsAPI = true
	}

	if shaderResp.Shader == nil {
		return nil, fmt.Errorf("invalid JSON response: 'Shader' key is missing")
	}

	if useCache {
		data, err := json.Marshal(shaderResp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal shader for cache: %w", err)
		}
		if err := os.WriteFile(cachePath, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write shader to cache at %s: %w", cachePath, err)
		}
		log.Printf("Shader %s cached at %s", shaderID, cachePath)
	}
	return &shaderResp, nil
}
