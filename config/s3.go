package config

// S3Config holds the AWS S3 connection used when STORAGE_TYPE=s3.
type S3Config struct {
	BucketName   string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"-"`
	SecretKey    string `yaml:"-"`
	UsePathStyle bool   `yaml:"usePathStyle"`
}

func (s *S3Config) applyEnv() {
	setString(&s.BucketName, "AWS_S3_BUCKET_NAME")
	setString(&s.Region, "AWS_REGION")
	setString(&s.Endpoint, "AWS_ENDPOINT")
	setString(&s.AccessKey, "AWS_ACCESS_KEY")
	setString(&s.SecretKey, "AWS_SECRET_KEY")
	setBool(&s.UsePathStyle, "AWS_S3_USE_PATH_STYLE")
}
