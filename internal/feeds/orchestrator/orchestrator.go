// Package orchestrator implements the orchestrator feed: it watches pods
// under a namespace/label selector via a Kubernetes informer and streams
// each selected container's logs, reconnecting with exponential backoff
// and de-duplicating across reconnects via a resume watermark, per
// spec.md §4.1's "Orchestrator feed". Adapted from the pod-informer
// pattern in other_examples' uselagoon-lagoon-ssh-portal k8s logs client
// (linewiseCopy, podEventHandler, newPodInformer).
package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/cache"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/sirupsen/logrus"

	"fml/internal/apperr"
	"fml/internal/entry"
	"fml/internal/types"
)

const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// Selector scopes the pods this feed follows. An empty Namespace selects
// every namespace ("selecting a parent context expands to every
// namespace and pod under it", per spec.md).
type Selector struct {
	Namespace     string
	LabelSelector string
	Container     string // restrict to one container name; empty means all
}

// Feed streams logs from every pod/container matching Selector.
type Feed struct {
	clientset  kubernetes.Interface
	selector   Selector
	dispatcher types.Dispatcher
	log        *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	sessions   map[string]context.CancelFunc
	watermarks map[string]watermark
}

// watermark is the resume de-duplication state for one pod/container
// stream: the last observed line's timestamp and content hash.
type watermark struct {
	ts   time.Time
	hash uint64
}

// New builds a clientset from in-cluster config, falling back to
// $KUBECONFIG or ~/.kube/config for out-of-cluster use.
func New(kubeconfigPath string, selector Selector, dispatcher types.Dispatcher, log *logrus.Entry) (*Feed, error) {
	cfg, err := loadConfig(kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator feed: load kubeconfig: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("orchestrator feed: build clientset: %w", err)
	}
	return newWithClientset(clientset, selector, dispatcher, log), nil
}

func newWithClientset(clientset kubernetes.Interface, selector Selector, dispatcher types.Dispatcher, log *logrus.Entry) *Feed {
	return &Feed{
		clientset:  clientset,
		selector:   selector,
		dispatcher: dispatcher,
		log:        log,
		sessions:   make(map[string]context.CancelFunc),
		watermarks: make(map[string]watermark),
	}
}

func loadConfig(kubeconfigPath string) (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		loadingRules.ExplicitPath = kubeconfigPath
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
}

// Start runs a pod informer scoped to the selector, starting/stopping a
// log session per matching pod's containers as the pod set changes.
func (f *Feed) Start(ctx context.Context) error {
	f.ctx, f.cancel = context.WithCancel(ctx)

	factory := informers.NewSharedInformerFactoryWithOptions(
		f.clientset,
		0,
		informers.WithNamespace(f.selector.Namespace),
		informers.WithTweakListOptions(func(opts *metav1.ListOptions) {
			opts.LabelSelector = f.selector.LabelSelector
		}),
	)
	podInformer := factory.Core().V1().Pods().Informer()
	_, err := podInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc: func(obj any) { f.handlePodEvent(obj) },
		UpdateFunc: func(_, obj any) {
			f.handlePodEvent(obj)
		},
		DeleteFunc: func(obj any) {
			pod, ok := obj.(*corev1.Pod)
			if !ok {
				if tombstone, ok := obj.(cache.DeletedFinalStateUnknown); ok {
					pod, _ = tombstone.Obj.(*corev1.Pod)
				}
			}
			if pod != nil {
				f.stopPod(pod)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("orchestrator feed: add event handler: %w", err)
	}

	podInformer.Run(f.ctx.Done())
	f.wg.Wait()
	return nil
}

func (f *Feed) handlePodEvent(obj any) {
	pod, ok := obj.(*corev1.Pod)
	if !ok || pod.Status.Phase != corev1.PodRunning {
		return
	}
	for _, cs := range pod.Status.ContainerStatuses {
		if f.selector.Container != "" && cs.Name != f.selector.Container {
			continue
		}
		if !cs.Ready {
			continue
		}
		f.startSession(pod.Namespace, pod.Name, cs.Name, len(pod.Spec.Containers) == 1)
	}
}

func (f *Feed) stopPod(pod *corev1.Pod) {
	for _, c := range pod.Spec.Containers {
		key := sessionKey(pod.Namespace, pod.Name, c.Name)
		f.mu.Lock()
		cancel, exists := f.sessions[key]
		if exists {
			delete(f.sessions, key)
		}
		f.mu.Unlock()
		if exists {
			cancel()
		}
	}
}

func sessionKey(namespace, pod, container string) string {
	return namespace + "/" + pod + "/" + container
}

func (f *Feed) startSession(namespace, pod, container string, singleContainer bool) {
	key := sessionKey(namespace, pod, container)

	f.mu.Lock()
	if _, exists := f.sessions[key]; exists {
		f.mu.Unlock()
		return
	}
	sessionCtx, cancel := context.WithCancel(f.ctx)
	f.sessions[key] = cancel
	f.mu.Unlock()

	producer := pod
	if !singleContainer {
		producer = pod + "/" + container
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer func() {
			f.mu.Lock()
			delete(f.sessions, key)
			f.mu.Unlock()
		}()
		f.runSession(sessionCtx, key, namespace, pod, container, producer)
	}()
}

// runSession streams one container's logs, reconnecting with exponential
// backoff on transient stream errors until sessionCtx is cancelled.
func (f *Feed) runSession(sessionCtx context.Context, key, namespace, pod, container, producer string) {
	backoff := initialBackoff
	for {
		if sessionCtx.Err() != nil {
			return
		}

		err := f.streamOnce(sessionCtx, key, namespace, pod, container, producer)
		if sessionCtx.Err() != nil {
			return
		}
		if err != nil {
			f.logf(apperr.Wrap(apperr.ErrSourceTransient, fmt.Errorf("%s: %w", producer, err)))
		} else {
			backoff = initialBackoff
		}

		select {
		case <-time.After(backoff):
		case <-sessionCtx.Done():
			return
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (f *Feed) streamOnce(ctx context.Context, key, namespace, pod, container, producer string) error {
	req := f.clientset.CoreV1().Pods(namespace).GetLogs(pod, &corev1.PodLogOptions{
		Container:  container,
		Follow:     true,
		Timestamps: true,
	})
	logStream, err := req.Stream(ctx)
	if err != nil {
		return err
	}
	defer logStream.Close()

	scanner := bufio.NewScanner(logStream)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	// A stream that ends at io.EOF returns nil, which runSession treats as
	// a successful connection and resets its backoff to initialBackoff.
	for scanner.Scan() {
		ts, message := splitTimestamp(scanner.Text())
		if f.shouldSkip(key, ts, message) {
			continue
		}
		f.recordWatermark(key, ts, message)

		raw := types.RawLine{
			Source:   entry.Orchestrator,
			Producer: producer,
			Raw:      message,
			IngestTs: time.Now().UnixNano(),
		}
		if err := f.dispatcher.Handle(ctx, raw); err != nil && ctx.Err() == nil {
			f.logf(err)
		}
	}
	return scanner.Err()
}

// splitTimestamp strips the RFC3339Nano timestamp prefix the kubelet
// attaches when Timestamps:true is requested ("<ts> <line>"), returning
// the parsed timestamp (or the zero value if unparseable) and the
// remaining message.
func splitTimestamp(line string) (time.Time, string) {
	for i := 0; i < len(line); i++ {
		if line[i] == ' ' {
			if ts, err := time.Parse(time.RFC3339Nano, line[:i]); err == nil {
				return ts, line[i+1:]
			}
			break
		}
	}
	return time.Time{}, line
}

func contentHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// shouldSkip reports whether line (identified by ts and its content
// hash) has already been observed at-or-before the stream's resume
// watermark, implementing de-duplication across reconnects.
func (f *Feed) shouldSkip(key string, ts time.Time, message string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.watermarks[key]
	if !ok || ts.IsZero() {
		return false
	}
	if ts.Before(prev.ts) {
		return true
	}
	if ts.Equal(prev.ts) && contentHash(message) == prev.hash {
		return true
	}
	return false
}

func (f *Feed) recordWatermark(key string, ts time.Time, message string) {
	if ts.IsZero() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watermarks[key] = watermark{ts: ts, hash: contentHash(message)}
}

func (f *Feed) logf(err error) {
	if f.log != nil {
		f.log.WithError(err).Warn("orchestrator feed error")
	}
}

// Stop cancels every active session and the informer.
func (f *Feed) Stop() error {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	return nil
}

var _ types.Monitor = (*Feed)(nil)
