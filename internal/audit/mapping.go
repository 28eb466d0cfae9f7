package audit

import (
	"strings"
	"unicode"
)

// ActionResource holds action and resource derived from a gRPC full method name.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseFullMethod returns action and resource for a gRPC full method (e.g. /auth.v1.AuthService/ChangePassword).
// Action is the method name in snake_case (change_password); resource is the service name without
// the "Service" suffix, lower-cased (auth).
func ParseFullMethod(fullMethod string) ActionResource {
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: methodToAction(method), Resource: "unknown"}
	}
	return ActionResource{Action: methodToAction(method), Resource: serviceToResource(beforeSlash[dot+1:])}
}

func serviceToResource(serviceName string) string {
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s)
}

func methodToAction(method string) string {
	if method == "" {
		return "unknown"
	}
	var b strings.Builder
	for i, r := range method {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
