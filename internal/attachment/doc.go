// Package attachment validates campaign attachment references and resolves
// them to bytes at dispatch time.
//
// Attachments are persisted on a campaign as a JSON array of
// {type, name, url} records. Parse turns that array into the closed
// domain.Attachment variant once, at the boundary; Sanitize filters
// user-supplied entries at campaign creation; Resolver reads uploads from an
// UploadStore and fetches external URLs, re-checking URL safety right before
// each fetch.
package attachment
