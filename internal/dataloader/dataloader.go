// Package dataloader группирует запросы аккаунтов для имен авторов.
package dataloader

import (
	"context"
	"net/http"
	"time"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/storage"
	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders содержит дата-лоадеры одного запроса.
type Loaders struct {
	AccountByID *dataloader.Loader
}

// NewLoaders создает новые лоадеры. Кэш живет столько же, сколько Loaders,
// поэтому они создаются на каждый запрос.
func NewLoaders(store storage.AccountStore) *Loaders {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))

		accounts, err := store.GetAccountsByIDs(ctx, keys.Keys())
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Результаты должны идти в порядке ключей. Для ненайденных аккаунтов - nil.
		for i, k := range keys {
			var data *domain.Account
			if a, ok := accounts[k.String()]; ok {
				data = a
			}
			results[i] = &dataloader.Result{Data: data}
		}
		return results
	}

	return &Loaders{
		AccountByID: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(time.Millisecond)),
	}
}

// Middleware кладет новые лоадеры в контекст каждого запроса.
func Middleware(store storage.AccountStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), key, NewLoaders(store))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// For возвращает лоадеры запроса или nil вне Middleware.
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(key).(*Loaders)
	return l
}

// Resolver сопоставляет id аккаунтов с именами. Внутри запроса работает через лоадер,
// иначе делает один пакетный запрос к хранилищу.
type Resolver struct {
	store storage.AccountStore
}

func NewResolver(store storage.AccountStore) *Resolver {
	return &Resolver{store: store}
}

// Names возвращает имя для каждого найденного id. Неизвестных id нет в результате.
func (r *Resolver) Names(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	loaders := For(ctx)
	if loaders == nil {
		accounts, err := r.store.GetAccountsByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for id, a := range accounts {
			names[id] = a.Name
		}
		return names, nil
	}

	data, errs := loaders.AccountByID.LoadMany(ctx, dataloader.NewKeysFromStrings(ids))()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	for _, d := range data {
		if a, ok := d.(*domain.Account); ok && a != nil {
			names[a.ID] = a.Name
		}
	}
	return names, nil
}
