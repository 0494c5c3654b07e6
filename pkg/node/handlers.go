package node

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ryandielhenn/seirnet/pkg/network"
	"github.com/ryandielhenn/seirnet/pkg/seir"
)

// Routes registers every endpoint on mux. wrap, if not nil, decorates each
// handler with its operation name (for metrics).
func (n *Node) Routes(mux *http.ServeMux, wrap func(op string, h http.Handler) http.Handler) {
	if wrap == nil {
		wrap = func(_ string, h http.Handler) http.Handler { return h }
	}
	handle := func(pattern, op string, fn http.HandlerFunc) {
		mux.Handle(pattern, wrap(op, fn))
	}
	handle("GET /healthz", "healthz", n.Healthz)
	handle("GET /info", "info", n.Info)
	handle("GET /stats", "stats", n.Stats)
	handle("POST /advance", "advance", n.Advance)
	handle("POST /reset", "reset", n.Reset)
	handle("POST /introduce", "introduce", n.Introduce)
	handle("GET /nodes/{id}", "node", n.NodeState)
	handle("GET /history", "history", n.History)
	handle("GET /peers", "peers", n.PeerList)
}

// healthz returns 200 OK to indicate the Node is alive.
func (n *Node) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// info writes the process ID, network size and disease parameters.
func (n *Node) Info(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		ID     string      `json:"id"`
		PID    int         `json:"pid"`
		Now    time.Time   `json:"now"`
		Nodes  int         `json:"nodes"`
		Params seir.Params `json:"params"`
	}
	n.mu.Lock()
	r := resp{ID: n.id, PID: os.Getpid(), Now: time.Now(), Nodes: n.sim.Len(), Params: n.sim.Params()}
	n.mu.Unlock()
	writeJSON(w, http.StatusOK, r)
}

func (n *Node) Stats(w http.ResponseWriter, _ *http.Request) {
	n.mu.Lock()
	st := n.sim.Stats()
	n.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

// MaxAdvanceDays bounds one /advance request. The simulator lock is held for
// the whole run, so every other endpoint waits on it.
const MaxAdvanceDays = 3650

// advance runs ?days=N (default 1, at most MaxAdvanceDays) with optional
// ?sd=true&factor=F.
func (n *Node) Advance(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	days, err := intParam(q.Get("days"), 1)
	if err != nil {
		http.Error(w, "invalid days", http.StatusBadRequest)
		return
	}
	if days > MaxAdvanceDays {
		http.Error(w, "days exceeds "+strconv.Itoa(MaxAdvanceDays), http.StatusBadRequest)
		return
	}
	sd, err := boolParam(q.Get("sd"), false)
	if err != nil {
		http.Error(w, "invalid sd", http.StatusBadRequest)
		return
	}
	factor, err := floatParam(q.Get("factor"), 1.0)
	if err != nil {
		http.Error(w, "invalid factor", http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	err = n.sim.Advance(days, sd, factor)
	st := n.sim.Stats()
	n.mu.Unlock()
	if err != nil {
		n.writeError(w, err)
		return
	}
	n.publish(st)
	n.log.Info("advanced", zap.Int("days", days), zap.Bool("sd", sd), zap.Float64("factor", factor), zap.Int("day", st.Day))
	writeJSON(w, http.StatusOK, st)
}

// reset restores the baseline population and clears the day history.
func (n *Node) Reset(w http.ResponseWriter, _ *http.Request) {
	n.mu.Lock()
	n.sim.Reset()
	n.hist.Clear()
	st := n.sim.Stats()
	n.mu.Unlock()
	n.publish(st)
	writeJSON(w, http.StatusOK, st)
}

// introduce exposes one random susceptible person.
func (n *Node) Introduce(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		Node  network.NodeID `json:"node"`
		Stats seir.Stats     `json:"stats"`
	}
	n.mu.Lock()
	id, err := n.sim.IntroduceInfectedNode()
	st := n.sim.Stats()
	n.mu.Unlock()
	if err != nil {
		n.writeError(w, err)
		return
	}
	n.publish(st)
	writeJSON(w, http.StatusOK, resp{Node: id, Stats: st})
}

// nodeState returns the compartment and countdown of one person.
func (n *Node) NodeState(w http.ResponseWriter, req *http.Request) {
	raw, err := strconv.ParseInt(req.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid node id", http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	ns, ok := n.sim.State(network.NodeID(raw))
	n.mu.Unlock()
	if !ok {
		n.writeError(w, errors.Wrapf(network.ErrUnknownNode, "node %d", raw))
		return
	}
	type resp struct {
		ID network.NodeID `json:"id"`
		seir.NodeState
	}
	if !ns.Counting() {
		ns.Remaining = -1
	}
	writeJSON(w, http.StatusOK, resp{ID: network.NodeID(raw), NodeState: ns})
}

// history returns the last ?limit=N days, oldest first.
func (n *Node) History(w http.ResponseWriter, req *http.Request) {
	limit, err := intParam(req.URL.Query().Get("limit"), 0)
	if err != nil || limit < 0 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, n.hist.Recent(limit))
}

func (n *Node) PeerList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, n.Peers())
}

func (n *Node) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, seir.ErrInvalidParameter):
		status = http.StatusBadRequest
	case errors.Is(err, seir.ErrNoSusceptibleNodes):
		status = http.StatusConflict
	case errors.Is(err, network.ErrUnknownNode):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		n.log.Error("request failed", zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
