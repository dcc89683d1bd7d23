package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const bucketName = "images"

// GridFSStorage keeps uploaded files in a MongoDB GridFS bucket, using the
// object path as the GridFS filename.
type GridFSStorage struct {
	db *mongo.Database
}

func NewGridFSStorage(db *mongo.Database) (*GridFSStorage, error) {
	if _, err := openBucket(db); err != nil {
		return nil, err
	}
	return &GridFSStorage{db: db}, nil
}

// bucket deadlines are per bucket value, so every call gets its own
func openBucket(db *mongo.Database) (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}
	return bucket, nil
}

func (s *GridFSStorage) Put(ctx context.Context, path, contentType string, data []byte) error {
	bucket, err := openBucket(s.db)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := bucket.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	opts := options.GridFSUpload().SetMetadata(bson.M{
		"content_type": contentType,
		"uploaded_at":  time.Now().UTC(),
	})
	if _, err := bucket.UploadFromStream(path, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("gridfs upload failed: %w", err)
	}
	return nil
}

func (s *GridFSStorage) Open(ctx context.Context, path string) (io.ReadCloser, string, error) {
	bucket, err := openBucket(s.db)
	if err != nil {
		return nil, "", err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := bucket.SetReadDeadline(deadline); err != nil {
			return nil, "", fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	stream, err := bucket.OpenDownloadStreamByName(path)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, "", ErrObjectNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("gridfs open failed: %w", err)
	}

	var meta struct {
		ContentType string `bson:"content_type"`
	}
	if raw := stream.GetFile().Metadata; raw != nil {
		if err := bson.Unmarshal(raw, &meta); err != nil {
			stream.Close()
			return nil, "", fmt.Errorf("decode gridfs metadata: %w", err)
		}
	}
	return stream, meta.ContentType, nil
}
