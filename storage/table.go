package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"kanban-board/domain"
)

const (
	boardPartition = "board"
	edmInt64       = "Edm.Int64"
)

// TableCollection stores each task as an Azure Tables entity in a single
// partition. Seq records insertion order because RowKeys sort lexically.
type TableCollection struct {
	table *aztables.Client
	now   func() time.Time

	seedMu sync.Mutex
	seeded bool
}

// NewTableCollection creates a TableCollection from the given connection string.
func NewTableCollection(connStr, tasksTable string) (*TableCollection, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &TableCollection{table: svc.NewClient(tasksTable), now: time.Now}, nil
}

type taskEntity struct {
	aztables.Entity
	Title     string `json:"Title"`
	Status    string `json:"Status"`
	CreatedAt int64  `json:"CreatedAt,string"`
	Seq       int64  `json:"Seq,string"`
}

func (e taskEntity) task() domain.Task {
	return domain.Task{
		ID:        e.RowKey,
		Title:     e.Title,
		Status:    domain.Status(e.Status),
		CreatedAt: e.CreatedAt,
	}
}

func (c *TableCollection) List(ctx context.Context) ([]domain.Task, error) {
	ents, err := c.listEntities(ctx)
	if err != nil {
		return nil, err
	}
	if len(ents) == 0 && c.claimSeed() {
		for _, t := range SeedTasks(c.now()) {
			if err := c.Insert(ctx, t); err != nil {
				return nil, fmt.Errorf("seed task %s: %w", t.ID, err)
			}
		}
		if ents, err = c.listEntities(ctx); err != nil {
			return nil, err
		}
	}
	tasks := make([]domain.Task, 0, len(ents))
	for _, e := range ents {
		tasks = append(tasks, e.task())
	}
	return tasks, nil
}

func (c *TableCollection) claimSeed() bool {
	c.seedMu.Lock()
	defer c.seedMu.Unlock()
	if c.seeded {
		return false
	}
	c.seeded = true
	return true
}

func (c *TableCollection) listEntities(ctx context.Context) ([]taskEntity, error) {
	filter := "PartitionKey eq '" + boardPartition + "'"
	pager := c.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	ents := []taskEntity{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := sonic.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			ents = append(ents, ent)
		}
	}
	sort.SliceStable(ents, func(i, j int) bool { return ents[i].Seq < ents[j].Seq })
	return ents, nil
}

func (c *TableCollection) Insert(ctx context.Context, t domain.Task) error {
	ent := map[string]any{
		"PartitionKey":         boardPartition,
		"RowKey":               t.ID,
		"Title":                t.Title,
		"Status":               string(t.Status),
		"CreatedAt":            strconv.FormatInt(t.CreatedAt, 10),
		"CreatedAt@odata.type": edmInt64,
		"Seq":                  strconv.FormatInt(c.now().UnixNano(), 10),
		"Seq@odata.type":       edmInt64,
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = c.table.AddEntity(ctx, payload, nil)
	return err
}

func (c *TableCollection) Update(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	resp, err := c.table.GetEntity(ctx, boardPartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Task{}, ErrNotFound
		}
		return domain.Task{}, err
	}
	var ent taskEntity
	if err := sonic.Unmarshal(resp.Value, &ent); err != nil {
		return domain.Task{}, err
	}
	updated := patch.Apply(ent.task())

	changes := map[string]any{
		"PartitionKey": boardPartition,
		"RowKey":       id,
		"Title":        updated.Title,
		"Status":       string(updated.Status),
	}
	payload, err := sonic.Marshal(changes)
	if err != nil {
		return domain.Task{}, err
	}
	etag := resp.ETag
	_, err = c.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		if isNotFound(err) {
			return domain.Task{}, ErrNotFound
		}
		return domain.Task{}, err
	}
	return updated, nil
}

func (c *TableCollection) Delete(ctx context.Context, id string) error {
	_, err := c.table.DeleteEntity(ctx, boardPartition, id, nil)
	if isNotFound(err) {
		return ErrNotFound
	}
	return err
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// EnsureTable creates the tasks table if it does not exist yet.
func (c *TableCollection) EnsureTable(ctx context.Context) error {
	_, err := c.table.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists) {
			return nil
		}
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}
