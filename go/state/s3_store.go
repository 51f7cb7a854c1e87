package state

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/samsarahq/go/oops"
)

// S3Store keeps the snapshot as a single JSON object, for deployments without
// a persistent disk (Lambda).
type S3Store struct {
	Client s3iface.S3API
	Bucket string
	Key    string
}

func NewS3Store(client s3iface.S3API, bucket, key string) *S3Store {
	return &S3Store{Client: client, Bucket: bucket, Key: key}
}

func (s *S3Store) Load(ctx context.Context) (Snapshot, error) {
	output, err := s.Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return Snapshot{}, nil
		}
		return nil, oops.Wrapf(err, "get state object s3://%s/%s", s.Bucket, s.Key)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, oops.Wrapf(err, "read state object s3://%s/%s", s.Bucket, s.Key)
	}
	snapshot, err := decode(data)
	if err != nil {
		return nil, oops.Wrapf(err, "decode state object s3://%s/%s", s.Bucket, s.Key)
	}
	return snapshot, nil
}

func (s *S3Store) Save(ctx context.Context, snapshot Snapshot) error {
	data, err := encode(snapshot)
	if err != nil {
		return oops.Wrapf(err, "encode state")
	}
	_, err = s.Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Body:        aws.ReadSeekCloser(bytes.NewReader(data)),
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.Key),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return oops.Wrapf(err, "put state object s3://%s/%s", s.Bucket, s.Key)
	}
	return nil
}
