package api

// Links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var Links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/maps>; rel="maps"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/maps>; rel="maps"`,
	},
	"/api/v1/maps": {
		`</api/v1/info>; rel="info"`,
	},
	"/api/v1/maps/{id}": {
		`</api/v1/maps>; rel="collection"`,
	},
}
