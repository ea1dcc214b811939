package schema

import "strings"

const emailPattern = `^[^\s@]+@[^\s@]+\.[^\s@]+$`

// Default 市场内置实体规则
func Default() *Registry {
	return NewRegistry(
		New("user", nil,
			Required("nombre", String().Length(2, 100)),
			Required("email", String().Match(emailPattern)),
			Required("rolId", Number().Range(1, 7)),
			Optional("password", String().Length(6, 128)),
			Optional("activo", Boolean()),
			Optional("telefono", String().Match(`^\+?[0-9 ]{7,20}$`)),
			Optional("fechaNacimiento", Date()),
			Optional("puntos", Number().AtLeast(0)),
		),
		New("role", nil,
			Required("nombre", String().Length(2, 50)),
			Required("codigo", String().Match(`^[a-z_]+$`)),
			Required("permisos", Array()),
		),
		New("course", nil,
			Required("titulo", String().Length(3, 150)),
			Optional("descripcion", String().Length(0, 2000)),
			Required("precio", Number().AtLeast(0)),
			Required("areaId", Number().AtLeast(1)),
			Optional("instructorId", Number().AtLeast(1)),
			Required("nivel", String().OneOf("basico", "intermedio", "avanzado")),
			Optional("fechaPublicacion", Date()),
			Optional("etiquetas", Array()),
			Optional("publicado", Boolean()),
		),
		New("exam", nil,
			Required("cursoId", Number().AtLeast(1)),
			Required("titulo", String().Length(3, 150)),
			Required("preguntas", Array()),
			Required("duracionMinutos", Number().Range(1, 600)),
			Optional("puntajeMinimo", Number().Range(0, 100)),
			Optional("fechaLimite", Date()),
		),
		New("area", nil,
			Required("nombre", String().Length(2, 100)),
			Optional("descripcion", String().Length(0, 500)),
		),
		New("certificate", nil,
			Required("usuarioId", Number().AtLeast(1)),
			Required("cursoId", Number().AtLeast(1)),
			Required("fechaEmision", Date()),
			Optional("codigo", String().Match(`^CERT-[A-Z0-9]+$`)),
			Optional("metadata", Object()),
		),
		New("enrollment", nil,
			Required("usuarioId", Number().AtLeast(1)),
			Required("cursoId", Number().AtLeast(1)),
			Required("fechaInscripcion", Date()),
			Optional("estado", String().OneOf("activa", "completada", "cancelada")),
			Optional("progreso", Number().Range(0, 100)),
		),
	)
}

// Bindings 资源路径首段 -> 实体名，一一对应
type Bindings map[string]string

// DefaultBindings 内置资源映射
func DefaultBindings() Bindings {
	return Bindings{
		"/users":         "user",
		"/roles":         "role",
		"/cursos":        "course",
		"/examenes":      "exam",
		"/areas":         "area",
		"/certificados":  "certificate",
		"/inscripciones": "enrollment",
	}
}

// EntityFor 资源对应的实体名，未映射时返回空串
func (b Bindings) EntityFor(resource string) string {
	return b["/"+strings.Trim(resource, "/")]
}
