package state

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/samsarahq/go/oops"
)

const (
	urlAttribute       = "URL"
	availableAttribute = "Available"

	// Dynamo has a max batch write size of 25.
	maxBatchWrite      = 25
	maxUnprocessedLoop = 5
)

// DynamoStore keeps one item per listing URL. The table's hash key is the
// string attribute "URL".
type DynamoStore struct {
	Client dynamodbiface.DynamoDBAPI
	Table  string
}

func NewDynamoStore(client dynamodbiface.DynamoDBAPI, table string) *DynamoStore {
	return &DynamoStore{Client: client, Table: table}
}

func (d *DynamoStore) Load(ctx context.Context) (Snapshot, error) {
	snapshot := Snapshot{}
	err := d.Client.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName: aws.String(d.Table),
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, item := range page.Items {
			url, ok := item[urlAttribute]
			if !ok || url.S == nil {
				continue
			}
			snapshot[*url.S] = availableFromAttribute(item[availableAttribute])
		}
		return true
	})
	if err != nil {
		return nil, oops.Wrapf(err, "scan state table %s", d.Table)
	}
	return snapshot, nil
}

// Save puts every snapshot entry and deletes items for URLs that are no longer
// in the snapshot.
func (d *DynamoStore) Save(ctx context.Context, snapshot Snapshot) error {
	existing, err := d.Load(ctx)
	if err != nil {
		return err
	}

	writeRequests := make([]*dynamodb.WriteRequest, 0, len(snapshot))
	for _, url := range snapshot.URLs() {
		writeRequests = append(writeRequests, &dynamodb.WriteRequest{
			PutRequest: &dynamodb.PutRequest{
				Item: map[string]*dynamodb.AttributeValue{
					urlAttribute:       {S: aws.String(url)},
					availableAttribute: availableToAttribute(snapshot[url]),
				},
			},
		})
	}
	for _, url := range existing.URLs() {
		if _, ok := snapshot[url]; ok {
			continue
		}
		writeRequests = append(writeRequests, &dynamodb.WriteRequest{
			DeleteRequest: &dynamodb.DeleteRequest{
				Key: map[string]*dynamodb.AttributeValue{
					urlAttribute: {S: aws.String(url)},
				},
			},
		})
	}

	for start := 0; start < len(writeRequests); start += maxBatchWrite {
		end := start + maxBatchWrite
		if end > len(writeRequests) {
			end = len(writeRequests)
		}
		if err := d.batchWrite(ctx, writeRequests[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (d *DynamoStore) batchWrite(ctx context.Context, requests []*dynamodb.WriteRequest) error {
	pending := map[string][]*dynamodb.WriteRequest{d.Table: requests}
	for attempt := 0; attempt < maxUnprocessedLoop; attempt++ {
		output, err := d.Client.BatchWriteItemWithContext(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return oops.Wrapf(err, "batch write state table %s", d.Table)
		}
		if len(output.UnprocessedItems[d.Table]) == 0 {
			return nil
		}
		pending = output.UnprocessedItems
	}
	return oops.Errorf("batch write state table %s: %d items left unprocessed", d.Table, len(pending[d.Table]))
}

func availableToAttribute(b *bool) *dynamodb.AttributeValue {
	if b == nil {
		return &dynamodb.AttributeValue{NULL: aws.Bool(true)}
	}
	return &dynamodb.AttributeValue{BOOL: aws.Bool(*b)}
}

func availableFromAttribute(v *dynamodb.AttributeValue) *bool {
	if v == nil || v.BOOL == nil {
		return nil
	}
	b := *v.BOOL
	return &b
}
