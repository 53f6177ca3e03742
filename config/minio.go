package config

// MinioConfig holds the MinIO connection used by the default storage backend.
type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"-"`
	SecretKey  string `yaml:"-"`
	UseSSL     bool   `yaml:"useSSL"`
	Region     string `yaml:"region"`
	BucketName string `yaml:"bucket"`
}

func (m *MinioConfig) applyEnv() {
	setString(&m.Endpoint, "MINIO_ENDPOINT")
	setString(&m.AccessKey, "MINIO_ACCESS_KEY")
	setString(&m.SecretKey, "MINIO_SECRET_KEY")
	setBool(&m.UseSSL, "MINIO_SECURE")
	setString(&m.Region, "MINIO_REGION")
	setString(&m.BucketName, "MINIO_BUCKET", "MINIO_BUCKET_NAME")
}
