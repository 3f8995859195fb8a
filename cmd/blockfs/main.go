package main

import (
	"flag"
	"sync"

	"github.com/hanwen/go-fuse/v2/fuse"
	log "github.com/sirupsen/logrus"

	"blockfs"
)

func init() {
	stdFormatter := &log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
		ForceColors:     true,
		DisableColors:   false,
	}
	log.SetFormatter(stdFormatter)
	log.SetLevel(log.InfoLevel)
}

func main() {
	debug := flag.Bool("debug", false, "print debug data")
	format := flag.Bool("format", false, "format the disk before mounting")
	disk := flag.String("disk", "./blockfs.img", "path of the backing store")
	blocks := flag.Uint("blocks", uint(blockfs.DefaultGeometry.TotalBlocks), "total block count when formatting")
	inodes := flag.Uint("inodes", uint(blockfs.DefaultGeometry.InodeCount), "inode count when formatting")
	flag.Parse()
	if *debug {
		log.SetLevel(log.DebugLevel)
		log.Warn("Debug mode enabled")
	}

	var engine *blockfs.FileSystem
	var err error
	if *format {
		engine, err = blockfs.Format(*disk, blockfs.Geometry{
			TotalBlocks: uint32(*blocks),
			InodeCount:  uint32(*inodes),
		})
	} else {
		engine, err = blockfs.Mount(*disk)
	}
	if err != nil {
		// Both failure modes here are the unrecoverable tier.
		log.Fatal(err)
	}
	defer engine.Unmount()

	if len(flag.Args()) < 1 {
		if *format {
			log.Infof("formatted %s", *disk)
			return
		}
		log.Fatal("Usage:\n\tblockfs [-format] [-disk FILE] MOUNTPOINT")
	}
	mountpoint := flag.Args()[0]

	server, err := fuse.NewServer(blockfs.NewFuseFS(engine), mountpoint,
		&fuse.MountOptions{FsName: "blockfs", Debug: *debug})
	if err != nil {
		log.Fatal(err)
	}
	server.SetDebug(*debug)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		server.Serve()
		defer server.Unmount()
		defer wg.Done()
	}()

	if err := server.WaitMount(); err != nil {
		log.Fatal(err)
	}
	wg.Wait()
}
