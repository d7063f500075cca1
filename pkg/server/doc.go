// Package server is the HTTP transport of odatad.
//
// Paths follow OData addressing:
//
//	GET    /                          service document
//	GET    /$metadata                 OpenAPI 3 document
//	GET    /{Set}                     list, with system query options
//	POST   /{Set}                     create
//	GET    /{Set}({Id})               get by key
//	PUT    /{Set}({Id})               replace
//	PATCH  /{Set}({Id})               merge patch
//	DELETE /{Set}({Id})               delete
//	PUT    /{Set}({Id})/{Nav}/$ref    link a single-valued navigation
//	POST   /{Set}({Id})/{Nav}/$ref    add to a collection navigation
//	GET    /$stats                    entity and operation counts
//	POST   /$reset                    restore the seed dataset, when enabled
//
// Every request is assigned an X-Request-ID and logged once.
package server
