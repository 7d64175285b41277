// Package mediatypes classifies uploads by extension and MIME type and maps
// between the two. Only extensions listed here are accepted by the upload
// pipeline; everything else is stored as an opaque attachment with no
// variants.
package mediatypes
