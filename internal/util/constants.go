package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	MimeImage = "image/"
	MimePDF   = "application/pdf"
)
