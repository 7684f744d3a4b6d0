package schemas

// Proxy is the opaque upstream proxy descriptor handed to a browser session.
// Server is a URL such as "http://10.0.0.1:3128" or "socks5://host:1080".
type Proxy struct {
	Server   string `json:"server"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}
