package permission

import (
	"net/http"
	"strings"
)

// Table 资源 -> HTTP方法 -> 权限编码
//
// 未登记的资源或方法不要求额外权限。
type Table map[string]map[string]string

// DefaultTable 市场内置权限表
func DefaultTable() Table {
	return Table{
		"/users": {
			http.MethodPost:   "crear_usuario",
			http.MethodPut:    "editar_usuario",
			http.MethodPatch:  "editar_usuario",
			http.MethodDelete: "eliminar_usuario",
		},
		"/roles": {
			http.MethodPost:   "gestionar_roles",
			http.MethodPut:    "gestionar_roles",
			http.MethodPatch:  "gestionar_roles",
			http.MethodDelete: "gestionar_roles",
		},
		"/cursos": {
			http.MethodPost:   "crear_curso",
			http.MethodPut:    "editar_curso",
			http.MethodPatch:  "editar_curso",
			http.MethodDelete: "eliminar_curso",
		},
		"/examenes": {
			http.MethodPost:   "crear_examen",
			http.MethodPut:    "editar_examen",
			http.MethodPatch:  "editar_examen",
			http.MethodDelete: "eliminar_examen",
		},
		"/areas": {
			http.MethodPost:   "gestionar_areas",
			http.MethodPut:    "gestionar_areas",
			http.MethodPatch:  "gestionar_areas",
			http.MethodDelete: "gestionar_areas",
		},
		"/certificados": {
			http.MethodPost:   "emitir_certificado",
			http.MethodDelete: "revocar_certificado",
		},
		"/inscripciones": {
			http.MethodPost:   "crear_inscripcion",
			http.MethodDelete: "cancelar_inscripcion",
		},
	}
}

// Merge 用 overrides 覆盖同名资源同名方法的条目，返回新表
func (t Table) Merge(overrides map[string]map[string]string) Table {
	out := make(Table, len(t)+len(overrides))
	for resource, methods := range t {
		m := make(map[string]string, len(methods))
		for method, code := range methods {
			m[method] = code
		}
		out[resource] = m
	}
	for resource, methods := range overrides {
		resource = Resource(resource)
		if out[resource] == nil {
			out[resource] = make(map[string]string, len(methods))
		}
		for method, code := range methods {
			out[resource][strings.ToUpper(method)] = code
		}
	}
	return out
}

// Required 资源与方法所需的权限编码，未登记时返回 false
func (t Table) Required(resource, method string) (string, bool) {
	code, ok := t[resource][method]
	return code, ok && code != ""
}

// Resource 路径首段，/users/42 -> /users
func Resource(path string) string {
	first, _ := segments(path)
	return "/" + first
}

// segments 路径首段与第二段
func segments(path string) (string, string) {
	parts := strings.SplitN(strings.Trim(path, "/"), "/", 3)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], parts[1]
	}
}
