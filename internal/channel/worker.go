package channel

import "sync"

// pool runs submitted tasks on a fixed set of goroutines fed by a bounded
// queue. A full queue blocks submit and makes offer fail.
type pool struct {
	tasks    chan func()
	quit     chan struct{}
	stopOnce sync.Once
}

func newPool(workers, queue int) *pool {
	if workers < 1 {
		workers = 1
	}
	if queue < 1 {
		queue = 1
	}
	p := &pool{
		tasks: make(chan func(), queue),
		quit:  make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *pool) run() {
	for {
		select {
		case fn := <-p.tasks:
			fn()
		case <-p.quit:
			return
		}
	}
}

// submit enqueues fn. It returns false once the pool is stopped.
func (p *pool) submit(fn func()) bool {
	select {
	case <-p.quit:
		return false
	default:
	}
	select {
	case p.tasks <- fn:
		return true
	case <-p.quit:
		return false
	}
}

// offer enqueues fn only if the queue has room. It returns false when the
// queue is full or the pool is stopped.
func (p *pool) offer(fn func()) bool {
	select {
	case <-p.quit:
		return false
	default:
	}
	select {
	case p.tasks <- fn:
		return true
	default:
		return false
	}
}

// stop terminates the workers. Queued tasks that have not started are
// discarded. stop does not wait, so a task may call it.
func (p *pool) stop() {
	p.stopOnce.Do(func() { close(p.quit) })
}
