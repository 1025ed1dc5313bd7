// Command asyncfsdemo exercises the filesystem package end to end: a
// write, a read, a watch with a cancelled sibling, and a combinator.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hiblaphp/filesystem"
)

func main() {
	if err := filesystem.Configure(
		filesystem.WithWorkerPoolSize(8),
		filesystem.WithOSEventAcceleration(true),
	); err != nil {
		log.Fatal(err)
	}
	defer filesystem.Reset()

	dir, err := os.MkdirTemp("", "asyncfsdemo")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "notes.txt")

	id := filesystem.Watch(path, func(kind filesystem.EventKind, path string) {
		fmt.Printf("watch: %v on %s\n", kind, path)
	}, filesystem.WithPollingInterval(50*time.Millisecond))
	defer func() { _, _ = filesystem.Unwatch(id).Await() }()

	writeFuture := filesystem.Write(path, []byte("hello asyncfs"))
	if _, err := writeFuture.Await(); err != nil {
		log.Fatal(err)
	}

	readFuture := filesystem.Read(path)
	v, err := readFuture.Await()
	if err != nil {
		var fsErr *filesystem.Error
		if errors.As(err, &fsErr) {
			log.Fatalf("read failed: %s: %v", fsErr.Kind, fsErr)
		}
		log.Fatal(err)
	}
	fmt.Printf("read back: %s\n", v)

	streamed := filesystem.ReadStream(path, filesystem.WithChunkSize(4))
	if _, err := streamed.Await(); err != nil {
		log.Fatal(err)
	}

	slowPath := filepath.Join(dir, "big.bin")
	slow := filesystem.WriteStream(slowPath, filesystem.Puller(func() ([]byte, bool, error) {
		return make([]byte, 1<<16), false, nil
	}))
	slow.Cancel("demo shutdown")
	if _, err := slow.Await(); err != nil {
		fmt.Printf("cancelled write settled with: %v\n", err)
	}

	all := filesystem.All([]filesystem.Awaitable{
		filesystem.Write(filepath.Join(dir, "a.txt"), []byte("a")),
		filesystem.Write(filepath.Join(dir, "b.txt"), []byte("b")),
	})
	if _, err := all.Await(); err != nil {
		log.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	fmt.Println("done")
}
