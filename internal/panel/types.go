package panel

// Inbound is one provisioned connection as the panel reports it.
type Inbound struct {
	ID       int    `json:"id"`
	Remark   string `json:"remark"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Enable   bool   `json:"enable"`

	// Nested panel settings arrive as JSON-encoded strings
	Settings       string `json:"settings"`
	StreamSettings string `json:"streamSettings"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Token   string `json:"token"`
}

type listResponse struct {
	Success bool      `json:"success"`
	Msg     string    `json:"msg"`
	Obj     []Inbound `json:"obj"`
}

type apiResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

// Credential is what a successful provisioning call hands back.
type Credential struct {
	UUID string
	Port int
}

type clientConfig struct {
	ID         string `json:"id"`
	Flow       string `json:"flow"`
	Email      string `json:"email"`
	LimitIP    int    `json:"limitIp"`
	TotalGB    int    `json:"totalGB"`
	ExpiryTime int64  `json:"expiryTime"`
	Enable     bool   `json:"enable"`
	TgID       string `json:"tgId"`
	SubID      string `json:"subId"`
	Reset      int    `json:"reset"`
}

type inboundSettings struct {
	Clients    []clientConfig `json:"clients"`
	Decryption string         `json:"decryption"`
	Fallbacks  []interface{}  `json:"fallbacks"`
}

type realitySettings struct {
	Show         bool                   `json:"show"`
	Xver         int                    `json:"xver"`
	Dest         string                 `json:"dest"`
	ServerNames  []string               `json:"serverNames"`
	PrivateKey   string                 `json:"privateKey"`
	MinClient    string                 `json:"minClient"`
	MaxClient    string                 `json:"maxClient"`
	MaxTimediff  int                    `json:"maxTimediff"`
	ShortIDs     []string               `json:"shortIds"`
	Settings     map[string]interface{} `json:"settings"`
}

type streamSettings struct {
	Network         string          `json:"network"`
	Security        string          `json:"security"`
	ExternalProxy   []interface{}   `json:"externalProxy"`
	RealitySettings realitySettings `json:"realitySettings"`
	TCPSettings     tcpSettings     `json:"tcpSettings"`
}

type tcpSettings struct {
	AcceptProxyProtocol bool              `json:"acceptProxyProtocol"`
	Header              map[string]string `json:"header"`
}

type sniffingSettings struct {
	Enabled      bool     `json:"enabled"`
	DestOverride []string `json:"destOverride"`
	MetadataOnly bool     `json:"metadataOnly"`
	RouteOnly    bool     `json:"routeOnly"`
}

type allocateSettings struct {
	Strategy    string `json:"strategy"`
	Refresh     int    `json:"refresh"`
	Concurrency int    `json:"concurrency"`
}

type addInboundRequest struct {
	Up         int    `json:"up"`
	Down       int    `json:"down"`
	Total      int    `json:"total"`
	Remark     string `json:"remark"`
	Enable     bool   `json:"enable"`
	ExpiryTime int64  `json:"expiryTime"`
	Listen     string `json:"listen"`
	Port       int    `json:"port"`
	Protocol   string `json:"protocol"`

	// The panel expects these four as JSON-encoded strings, not objects
	Settings       string `json:"settings"`
	StreamSettings string `json:"streamSettings"`
	Sniffing       string `json:"sniffing"`
	Allocate       string `json:"allocate"`
}

type updateClientRequest struct {
	UUID       string `json:"uuid"`
	ExpiryTime int64  `json:"expiryTime"`
	TotalGB    int    `json:"totalGB"`
	Enable     bool   `json:"enable"`
}
