package api

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// GetRawAPIShaderData fetches a shader the way the Shadertoy website does,
// which also works for shaders that were not published to the API. The
// response is a JSON array holding one shader.
func GetRawAPIShaderData(shaderID string) (string, error) {
	// The payload is a JSON string within a URL-encoded form value:
	// s={"shaders":["4lSGRV"]}
	data := url.Values{}
	data.Set("s", fmt.Sprintf(`{"shaders":["%s"]}`, shaderID))

	req, err := http.NewRequest("POST", shadertoyRawURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_10_3) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/43.0.2357.124 Safari/537.36")
	req.Header.Set("Origin", "https://www.shadertoy.com")
	req.Header.Set("Referer", "https://www.shadertoy.com/browse")
	req.Header.Set("Accept", "*/*")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad response status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}
