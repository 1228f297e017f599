package types

// MCPServer identifies one tool-provider endpoint that agent nodes may
// reference by name in their MCPServers list.
type MCPServer struct {
	Name      string            `json:"name" yaml:"name"`
	Transport string            `json:"transport" yaml:"transport"`
	URL       string            `json:"url,omitempty" yaml:"url,omitempty"`
	Command   string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args      []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Enabled   bool              `json:"enabled" yaml:"enabled"`
}

// Clone returns a deep copy of the server entry.
func (s MCPServer) Clone() MCPServer {
	out := s
	out.Args = append([]string(nil), s.Args...)
	if s.Env != nil {
		out.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			out.Env[k] = v
		}
	}
	return out
}

// ServerRegistry is the versioned document of known MCP servers. It is
// edited under the same compare-and-swap contract as graphs.
type ServerRegistry struct {
	Servers []MCPServer `json:"servers" yaml:"servers"`
}

// Clone returns a deep copy of the registry.
func (r ServerRegistry) Clone() ServerRegistry {
	out := ServerRegistry{}
	if r.Servers != nil {
		out.Servers = make([]MCPServer, len(r.Servers))
		for i, s := range r.Servers {
			out.Servers[i] = s.Clone()
		}
	}
	return out
}

// Index returns the position of the named server, or -1.
func (r ServerRegistry) Index(name string) int {
	for i, s := range r.Servers {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// Server returns the named server entry.
func (r ServerRegistry) Server(name string) (MCPServer, bool) {
	if i := r.Index(name); i >= 0 {
		return r.Servers[i].Clone(), true
	}
	return MCPServer{}, false
}
