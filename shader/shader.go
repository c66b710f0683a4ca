package shader

import (
	"fmt"
	"regexp"
	"strings"
)

// ────────────────────────────────── Vertex stage ──────────────────────────────────

const vertexShaderSourceGL = `#version 410 core
layout (location = 0) in vec2 in_vert;
void main() {
    gl_Position = vec4(in_vert, 0.0, 1.0);
}
`

const vertexShaderSourceGLES = `#version 300 es
layout (location = 0) in vec2 in_vert;
void main() {
    gl_Position = vec4(in_vert, 0.0, 1.0);
}
`

// ──────────────────────────────── Sound program glue ────────────────────────────────

// Uniform names shared by the composed program and the rasterizers.
const (
	UniformSampleRate   = "iSampleRate"
	UniformBlockOffset  = "blockOffset"
	UniformSampleOffset = "iSampleOffset"
)

const soundPreamble = `#version 300 es
precision highp float;
precision highp int;

#define HW_PERFORMANCE 1

uniform float iSampleRate;
uniform float blockOffset;
uniform int   iSampleOffset;
`

// Every pixel is one stereo sample. gl_FragCoord sits on pixel centers, so
// the -0.5 makes pixel (0,0) the first sample of the block.
const soundFooterTemplate = `
out vec4 outColor;
void main()
{
    float t = blockOffset + ((gl_FragCoord.x-0.5) + (gl_FragCoord.y-0.5)*%[1]d.0)/iSampleRate;
    int   s = iSampleOffset + int(gl_FragCoord.y-0.5)*%[1]d + int(gl_FragCoord.x-0.5);

    vec2 y = %[2]s;

    vec2 v  = clamp(floor((0.5+0.5*y)*65536.0), 0.0, 65535.0);
    vec2 vl =   mod(v,256.0)/255.0;
    vec2 vh = floor(v/256.0)/255.0;
    outColor = vec4(vl.x,vh.x,vl.y,vh.y);
}
`

var sampleIndexSignature = regexp.MustCompile(`\bmainSound\s*\(\s*(?:(?:highp|mediump|lowp|in|const)\s+)*int\b`)

// UsesSampleIndex reports whether the user code defines the two-argument
// mainSound(int samp, float time) entry point instead of mainSound(float time).
func UsesSampleIndex(userCode string) bool {
	return sampleIndexSignature.MatchString(stripComments(userCode))
}

// GenerateSoundShaderSource composes header + user code + footer. The #line
// directive makes compiler diagnostics point at the user's own line numbers.
func GenerateSoundShaderSource(userCode string, surfaceWidth int) string {
	call := "mainSound( t )"
	if UsesSampleIndex(userCode) {
		call = "mainSound( s, t )"
	}

	var sb strings.Builder
	sb.WriteString(soundPreamble)
	sb.WriteString("#line 1 1\n")
	sb.WriteString(userCode)
	if !strings.HasSuffix(userCode, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf(soundFooterTemplate, surfaceWidth, call))
	return sb.String()
}

// GenerateVertexShader returns the full-screen quad vertex stage.
func GenerateVertexShader(isGLES bool) string {
	if isGLES {
		return vertexShaderSourceGLES
	}
	return vertexShaderSourceGL
}

var (
	lineComment  = regexp.MustCompile(`//[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

func stripComments(src string) string {
	return lineComment.ReplaceAllString(blockComment.ReplaceAllString(src, ""), "")
}
