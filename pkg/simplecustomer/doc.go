// Package simplecustomer provides paginated CRUD over customer records with an
// optional image upload attached to each write.
//
// A Service is assembled from a Store, which persists customers and owns the
// page token format, and an optional Uploader, which places an image in object
// storage and returns its public URL. Store implementations (memory, Postgres,
// Badger, bbolt, MongoDB, Firestore) live under repo/ and uploaders (memory,
// filesystem, S3, Google Cloud Storage) under storage/.
//
// Writes that carry an image run in two phases: the image is uploaded first
// and its URL is written to the imageUrl attribute, then the record is
// persisted. A failed upload leaves the store untouched. A failed store write
// after a successful upload leaves the uploaded object in place.
package simplecustomer
