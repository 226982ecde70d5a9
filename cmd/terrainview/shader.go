package main

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"voxel-stream/internal/world"
)

const paletteSize = 16

const terrainVertexSrc = `#version 410 core
layout(location = 0) in vec3 position;
layout(location = 1) in vec3 normal;
layout(location = 2) in float material;

uniform mat4 mvp;
uniform vec4 palette[16];

out vec4 color;
out float shade;

void main() {
	gl_Position = mvp * vec4(position, 1.0);
	color = palette[int(material) & 15];
	vec3 sun = normalize(vec3(0.4, 1.0, 0.3));
	shade = 0.45 + 0.55 * max(dot(normal, sun), 0.0);
}` + "\x00"

const terrainFragmentSrc = `#version 410 core
in vec4 color;
in float shade;
out vec4 fragColor;

void main() {
	fragColor = vec4(color.rgb * shade, color.a);
}` + "\x00"

// terrainProgram is the single shader used for every chunk mesh.
type terrainProgram struct {
	id      uint32
	mvp     int32
	palette int32
}

func newTerrainProgram() (*terrainProgram, error) {
	id, err := newProgram(terrainVertexSrc, terrainFragmentSrc)
	if err != nil {
		return nil, err
	}
	p := &terrainProgram{
		id:      id,
		mvp:     gl.GetUniformLocation(id, gl.Str("mvp\x00")),
		palette: gl.GetUniformLocation(id, gl.Str("palette\x00")),
	}

	var colors [paletteSize * 4]float32
	for i := 0; i < paletteSize; i++ {
		c := world.BlockType(i).Color()
		for k := 0; k < 4; k++ {
			colors[i*4+k] = float32(c[k]) / 255
		}
	}
	gl.UseProgram(id)
	gl.Uniform4fv(p.palette, paletteSize, &colors[0])
	gl.UseProgram(0)
	return p, nil
}

func (p *terrainProgram) use(mvp mgl32.Mat4) {
	gl.UseProgram(p.id)
	gl.UniformMatrix4fv(p.mvp, 1, false, &mvp[0])
}

func (p *terrainProgram) delete() { gl.DeleteProgram(p.id) }

// newProgram compiles shaders and links them into a program.
func newProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	v, err := compileShader(vertexSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, errors.Wrap(err, "vertex shader")
	}
	f, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(v)
		return 0, errors.Wrap(err, "fragment shader")
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, v)
	gl.AttachShader(program, f)
	gl.LinkProgram(program)

	// shaders can be deleted after linking
	gl.DeleteShader(v)
	gl.DeleteShader(f)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := make([]byte, logLength+1)
		gl.GetProgramInfoLog(program, logLength, nil, &log[0])
		gl.DeleteProgram(program)
		return 0, errors.Errorf("program link error: %s", string(log))
	}
	return program, nil
}

func compileShader(src string, kind uint32) (uint32, error) {
	s := gl.CreateShader(kind)
	csrc, free := gl.Strs(src)
	gl.ShaderSource(s, 1, csrc, nil)
	free()
	gl.CompileShader(s)

	var status int32
	gl.GetShaderiv(s, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(s, gl.INFO_LOG_LENGTH, &logLength)
		log := make([]byte, logLength+1)
		gl.GetShaderInfoLog(s, logLength, nil, &log[0])
		gl.DeleteShader(s)
		return 0, errors.Errorf("compile error: %s", string(log))
	}
	return s, nil
}
