// Package http serves CMS pages and cache fragments over chi.
//
// Routes mounted by Mount:
//   - Cache fragments below the cache prefix (default /_cache):
//     /esi, /ssi, /js-sync, /js-async
//   - Memory cache flush: /apc?token=
//   - Every other path is resolved to a CMS page.
//
// Application routes that should be wrapped by a page layout use the
// Decorate middleware with their route name.
package http
