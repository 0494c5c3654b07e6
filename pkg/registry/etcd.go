// Package registry announces running simulator services in etcd and lets
// clients find them.
package registry

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// Prefix is the etcd key prefix under which simulators register.
const Prefix = "/seirnet/sims/"

func NewClient(endpoints []string) (*clientv3.Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "etcd client for %v", endpoints)
	}
	return cli, nil
}

// Key returns the registration key for id.
func Key(id string) string { return Prefix + id }

// IDFromKey strips Prefix from an etcd key.
func IDFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, Prefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// RegisterSimulator stores id -> addr under a lease of ttl seconds and keeps
// the lease alive until cancel is called.
func RegisterSimulator(cli *clientv3.Client, id, addr string, ttl int64) (clientv3.LeaseID, context.CancelFunc, error) {
	lease, err := cli.Grant(context.TODO(), ttl)
	if err != nil {
		return 0, nil, errors.Wrap(err, "grant lease")
	}
	if _, err := cli.Put(context.TODO(), Key(id), addr, clientv3.WithLease(lease.ID)); err != nil {
		return 0, nil, errors.Wrapf(err, "register %s", id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := cli.KeepAlive(ctx, lease.ID)
	if err != nil {
		cancel()
		return 0, nil, errors.Wrap(err, "keepalive")
	}
	go func() {
		// drain so the client does not log about a full channel
		for range ch {
		}
	}()
	return lease.ID, cancel, nil
}

// ListSimulators returns every registered id -> addr.
func ListSimulators(ctx context.Context, cli *clientv3.Client) (map[string]string, error) {
	resp, err := cli.Get(ctx, Prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrap(err, "list simulators")
	}
	out := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		if id, ok := IDFromKey(string(kv.Key)); ok {
			out[id] = string(kv.Value)
		}
	}
	return out, nil
}

// WatchSimulators calls fn with the full id -> addr set whenever a
// registration changes, until ctx is done.
func WatchSimulators(ctx context.Context, cli *clientv3.Client, log *zap.Logger, fn func(map[string]string)) {
	peers, err := ListSimulators(ctx, cli)
	if err != nil {
		log.Warn("initial simulator list failed", zap.Error(err))
		peers = map[string]string{}
	}
	fn(copyMap(peers))

	go func() {
		for wr := range cli.Watch(ctx, Prefix, clientv3.WithPrefix()) {
			if err := wr.Err(); err != nil {
				log.Warn("watch error", zap.Error(err))
				continue
			}
			if apply(peers, wr.Events) {
				fn(copyMap(peers))
			}
		}
	}()
}

// apply folds watch events into peers and reports whether anything changed.
func apply(peers map[string]string, events []*clientv3.Event) bool {
	changed := false
	for _, ev := range events {
		id, ok := IDFromKey(string(ev.Kv.Key))
		if !ok {
			continue
		}
		switch ev.Type {
		case mvccpb.PUT:
			if peers[id] != string(ev.Kv.Value) {
				peers[id] = string(ev.Kv.Value)
				changed = true
			}
		case mvccpb.DELETE:
			if _, ok := peers[id]; ok {
				delete(peers, id)
				changed = true
			}
		}
	}
	return changed
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
