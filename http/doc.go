// Package http serves the remoteStorage API for a remotestore.Service.
//
// # Routes
//
//	GET    /{owner}/{path}   object body with Content-Type, ETag and Last-Modified
//	GET    /{owner}/{dir}/   directory listing {"name": unix-millis, "sub/": unix-millis}
//	GET    /{owner}/         root listing
//	PUT    /{owner}/{path}   store the request body, 200 with ETag
//	DELETE /{owner}/{path}   204
//	OPTIONS any              200
//
// Every response carries the fixed CORS headers
//
//	Access-Control-Allow-Origin: *
//	Access-Control-Allow-Methods: GET, PUT, DELETE
//	Access-Control-Allow-Headers: Authorization, Content-Type, Origin
//
// # Authentication
//
// BearerToken reads "Authorization: Bearer <token>" into the request context.
// Authorization itself happens in the service; a request without a token is
// anonymous and may only read the public category.
//
// # Errors
//
// Errors are JSON bodies {"error": code, "message": text}. HandleError maps the
// remotestore sentinels to 403, 400, 404, 422, 412, 413 and 503; anything else
// is a 500. A forbidden request never reveals whether the object exists.
//
// # Usage
//
//	handler := http.NewHandler(&http.HandlerConfig{MaxUploadSize: 10 << 20}, service)
//	server := &nethttp.Server{Addr: ":5708", Handler: handler.Router()}
package http
