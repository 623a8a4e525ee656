/*
Package constants provides common values used across all harddns packages. Usage is to call the
global Get() function which returns the Constants by value ensuring that any modifications made
(accidental or otherwise) will not affect other modules when they call Get().

Typical usage:

    consts := constants.Get()
    fmt.Println("I am", consts.ProxyProgramName, "built from", consts.PackageURL)

The primary reason for making this a constructed struct rather than the more typical const () block
is so that it can be fed directly into templating packages for printing usage messages.
*/
package constants

// Constants contains the system-wide constants
type Constants struct {
	ProxyProgramName    string
	NSSCheckProgramName string
	Version             string
	PackageName         string
	PackageURL          string

	HTTPSDefaultPort string // HTTP related constants

	AcceptHeader      string // Placed in every DoH request
	ContentTypeHeader string
	UserAgentHeader   string
	XIgnoHeader       string // Padding header, legacy name carried over from the original implementation

	Rfc8484AcceptValue string
	JSONAcceptValue    string

	Rfc8484Path       string
	Rfc8484QueryParam string
	JSONPath          string

	DNSDefaultPort          string // DNS related constants
	MinimumViableDNSMessage uint   // A legit binary DNS message cannot be shorter than this
	MaximumViableDNSMessage uint   // RFC8484 upper limit

	XIgnoPadModulo uint // Minimum total request size; padded with X-Igno filler bytes

	DNSUDPTransport string // Suitable for the "net" package, but just to make sure we're
	DNSTCPTransport string // consistent across the whole module.

	DNSMaxLabelLength int // RFC1035 label length limit
	DNSMaxNameLength  int // RFC1035 full name length limit
	MaxCompressionHop int // Maximum compression-pointer chases before giving up

	NSSMarkerTag string // Synthetic CNAME-chain marker record owner prefix, never sent on the wire

	MaxCNAMEChainDepth int // Maximum CNAME indirections the DoH client will follow (the NSS adaptor stops after 3)

	DefaultCacheCleanInterval string // time.ParseDuration-parsable
}

var readOnlyConstants *Constants

// createReadOnlyConstants creates a read-only copy of the Constants which is copied whenever a
// caller asks for the constants set. The main reason for returning a struct is so that callers can
// inspect and/or use packages that introspect - particularly */template packages.
func createReadOnlyConstants() {
	readOnlyConstants = &Constants{
		ProxyProgramName:    "harddns-proxy",
		NSSCheckProgramName: "harddns-nsscheck",
		Version:             "v0.1.0",
		PackageName:         "harddns-go",
		PackageURL:          "https://github.com/sebkrahmer/harddns-go",

		HTTPSDefaultPort: "443",

		AcceptHeader:      "Accept",
		ContentTypeHeader: "Content-Type",
		UserAgentHeader:   "User-Agent",
		XIgnoHeader:       "X-Igno",

		Rfc8484AcceptValue: "application/dns-message",
		JSONAcceptValue:    "application/dns-json",

		Rfc8484Path:       "/dns-query",
		Rfc8484QueryParam: "dns",
		JSONPath:          "/resolve",

		DNSDefaultPort:          "443", // DoH always dials the HTTPS port, never 53
		MinimumViableDNSMessage: 12,    // Header only, zero questions
		MaximumViableDNSMessage: 65535,

		XIgnoPadModulo: 450,

		DNSUDPTransport: "udp",
		DNSTCPTransport: "tcp",

		DNSMaxLabelLength: 63,
		DNSMaxNameLength:  255,
		MaxCompressionHop: 10,

		NSSMarkerTag: "NSS",

		MaxCNAMEChainDepth: 10,

		DefaultCacheCleanInterval: "5m",
	}
}

func init() {
	createReadOnlyConstants()
}

// Get returns a copy of the Constant struct. Return by value so internal values cannot be
// inadvertently changed by callers.
func Get() Constants {
	return *readOnlyConstants
}
