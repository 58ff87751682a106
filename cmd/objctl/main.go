package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/project-files/pkg/projectfiles"
	"github.com/tendant/project-files/pkg/projectfiles/storage/s3"
)

func main() {
	region := flag.String("region", "us-east-1", "AWS region")
	bucket := flag.String("bucket", os.Getenv("AWS_S3_BUCKET"), "S3 bucket name")
	accessKey := flag.String("access-key", "", "AWS access key ID")
	secretKey := flag.String("secret-key", "", "AWS secret access key")
	endpoint := flag.String("endpoint", "", "Custom S3 endpoint (for MinIO, etc.)")
	usePathStyle := flag.Bool("use-path-style", false, "Use path-style addressing")
	sseAlgorithm := flag.String("sse-algorithm", "", "SSE algorithm (AES256 or aws:kms); empty disables SSE")
	sseKMSKeyID := flag.String("sse-kms-key-id", "", "KMS key ID for aws:kms algorithm")
	expires := flag.Duration("expires", time.Hour, "Lifetime of signed URLs")
	createBucket := flag.Bool("create-bucket", false, "Create bucket if it doesn't exist")

	command := flag.String("command", "help", "Command to execute: upload, head, delete, url-upload, url-download, help")
	objectKey := flag.String("key", "", "Object key for operations")
	filePath := flag.String("file", "", "File path for upload")
	contentType := flag.String("content-type", "", "Content type for upload and url-upload (default: from file extension)")
	size := flag.Int64("size", 0, "Content length to sign into url-upload")
	filename := flag.String("filename", "", "Attachment filename for url-download")

	useMinio := flag.Bool("use-minio", false, "Use MinIO defaults (sets endpoint, path-style, etc.)")
	minioEndpoint := flag.String("minio-endpoint", "http://localhost:9000", "MinIO server endpoint")

	flag.Parse()

	if *useMinio {
		*endpoint = *minioEndpoint
		*usePathStyle = true
		*createBucket = true
		if *accessKey == "" {
			*accessKey = "minioadmin"
		}
		if *secretKey == "" {
			*secretKey = "minioadmin"
		}
	}

	cmd := strings.ToLower(*command)
	if cmd == "help" || cmd == "" {
		printHelp()
		return
	}

	if *bucket == "" {
		log.Fatal("Bucket name is required")
	}
	if *objectKey == "" {
		log.Fatal("Object key is required")
	}
	if *accessKey == "" {
		*accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if *secretKey == "" {
		*secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}

	backend, err := s3.New(s3.Config{
		Region:                 *region,
		Bucket:                 *bucket,
		AccessKeyID:            *accessKey,
		SecretAccessKey:        *secretKey,
		Endpoint:               *endpoint,
		UsePathStyle:           *usePathStyle,
		PresignDuration:        int(*expires / time.Second),
		EnableSSE:              *sseAlgorithm != "",
		SSEAlgorithm:           *sseAlgorithm,
		SSEKMSKeyID:            *sseKMSKeyID,
		CreateBucketIfNotExist: *createBucket,
	})
	if err != nil {
		log.Fatalf("Failed to initialize S3 backend: %v", err)
	}

	ctx := context.Background()

	switch cmd {
	case "upload":
		if *filePath == "" {
			log.Fatal("File path is required for upload")
		}
		file, err := os.Open(*filePath)
		if err != nil {
			log.Fatalf("Failed to open file: %v", err)
		}
		defer file.Close()

		ct := *contentType
		if ct == "" {
			ct = mime.TypeByExtension(filepath.Ext(*filePath))
		}

		fmt.Printf("Uploading %s to %s...\n", *filePath, *objectKey)
		start := time.Now()
		if err := backend.Upload(ctx, *objectKey, ct, nil, file); err != nil {
			log.Fatalf("Upload failed: %v", err)
		}
		fmt.Printf("Upload successful (took %v)\n", time.Since(start))

	case "head":
		meta, err := backend.Head(ctx, *objectKey)
		if err != nil {
			log.Fatalf("Head failed: %v", err)
		}
		printJSON(meta)

	case "delete":
		if err := backend.Delete(ctx, *objectKey); err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		fmt.Printf("Deleted %s\n", *objectKey)

	case "url-upload":
		req, err := backend.PresignUpload(ctx, projectfiles.PresignUploadInput{
			Key:           *objectKey,
			ContentType:   *contentType,
			ContentLength: *size,
			Expires:       *expires,
		})
		if err != nil {
			log.Fatalf("Failed to sign upload URL: %v", err)
		}
		printJSON(req)

	case "url-download":
		req, err := backend.PresignDownload(ctx, projectfiles.PresignDownloadInput{
			Key:      *objectKey,
			Filename: *filename,
			Expires:  *expires,
		})
		if err != nil {
			log.Fatalf("Failed to sign download URL: %v", err)
		}
		printJSON(req)

	default:
		log.Fatalf("Unknown command: %s", *command)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}

func printHelp() {
	fmt.Println("objctl inspects and manipulates objects in the project-files bucket")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  objctl -command=<command> -bucket=<bucket> -key=<key> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  upload        Upload -file to -key")
	fmt.Println("  head          Print object metadata")
	fmt.Println("  delete        Delete the object")
	fmt.Println("  url-upload    Print a signed PUT request")
	fmt.Println("  url-download  Print a signed GET request")
	fmt.Println("  help          Show this help")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
}
