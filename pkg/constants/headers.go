package constants

// HTTP header constants used by the Negotiate authentication handshake.
// Header semantics follow RFC 7235: the client sends its token in
// Authorization, the server challenges and continues in WWW-Authenticate.
const (
	// HeaderAuthorization carries the client's handshake token.
	HeaderAuthorization = "Authorization"

	// HeaderWWWAuthenticate carries server challenges and continuation tokens.
	HeaderWWWAuthenticate = "WWW-Authenticate"

	// SchemeNegotiate is the default authentication scheme literal.
	SchemeNegotiate = "Negotiate"
)
