package graphics

import (
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/texture"
)

func (g *graphics) SetMaterial(m material.Material) error {
	if m.Ref != "" {
		return g.SetMaterialByName(m.Ref)
	}
	return g.applyMaterial(m, "")
}

func (g *graphics) SetMaterialByName(name string) error {
	m, err := g.materials.get(name)
	if err != nil {
		return err
	}
	// A registered material never chains to another one.
	m.Ref = ""
	return g.applyMaterial(m, name)
}

func (g *graphics) SetDefaultMaterial() error {
	return g.SetMaterialByName(DefaultName)
}

func (g *graphics) ActiveMaterial() (material.Material, string) {
	return g.activeMaterial, g.activeMaterialName
}

// applyMaterial resolves every name the material carries before touching any state, so a failed lookup leaves the
// context unchanged.
func (g *graphics) applyMaterial(m material.Material, name string) error {
	var tex texture.Texture
	if m.HasTexture() {
		tex = m.Texture.Handle
		if !m.Texture.HasHandle() {
			t, err := g.textures.get(m.Texture.Name)
			if err != nil {
				return err
			}
			tex = t
		}
	}

	switch m.ResolveShader(g.activeShaderName) {
	case material.ShaderDirect:
		if m.Shader.Handle != g.activeShader {
			g.SetShaderProgram(m.Shader.Handle)
		}
	case material.ShaderNamed:
		if err := g.SetShader(m.Shader.Name); err != nil {
			return err
		}
	case material.ShaderDefault:
		if err := g.SetShader(material.DefaultShader); err != nil {
			return err
		}
	}

	g.SetUseLighting(m.UseLighting)
	g.SetColor(m.Color)
	g.SetAlpha(m.Alpha)
	if m.UseLighting {
		g.SetSpecularColor(m.SpecularColor)
		g.SetShininess(m.Shininess)
	}
	if tex != nil {
		g.SetUseTexture(true)
		g.SetTexture(tex)
		g.SetTextureRepeat(m.TextureRepeat)
		g.SetTextureEnd(m.TextureEnd)
		g.SetTextureStart(m.TextureStart)
	} else {
		g.SetUseTexture(false)
	}

	g.activeMaterial, g.activeMaterialName = m, name
	return nil
}
