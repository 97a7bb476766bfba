package server

import (
	"time"

	"github.com/brettbedarf/seamfs/config"
	"github.com/brettbedarf/seamfs/filesystem"
	"github.com/brettbedarf/seamfs/internal/fusefs"
	"github.com/brettbedarf/seamfs/internal/util"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Server mounts a composed filesystem read-only through FUSE.
type Server struct {
	fs     *filesystem.FS
	cfg    *config.Config
	server *fuse.Server
}

// New creates a Server for fs. The server owns fs from here on and closes it on
// Unmount.
func New(cfg *config.Config, fs *filesystem.FS) *Server {
	return &Server{fs: fs, cfg: cfg}
}

// Serve mounts the filesystem at mountPoint and returns once the kernel has
// acknowledged the mount. Requests are served in the background.
func (s *Server) Serve(mountPoint string) error {
	logger := util.GetLogger("Server.Serve")
	attrTimeout := seconds(s.cfg.AttrTimeout)
	entryTimeout := seconds(s.cfg.EntryTimeout)
	opts := &gofuse.Options{
		AttrTimeout:  &attrTimeout,
		EntryTimeout: &entryTimeout,
	}
	raw := gofuse.NewNodeFS(fusefs.NewRoot(s.fs, s.cfg), opts)
	srv, err := fuse.NewServer(raw, mountPoint, &fuse.MountOptions{
		Name:   s.cfg.Name,
		FsName: s.cfg.FsName,
		Debug:  s.cfg.Debug || s.cfg.LogLvl == util.TraceLevel,
		Logger: util.NewLogLogger("FuseServer", util.TraceLevel),
	})
	if err != nil {
		return err
	}
	s.server = srv

	go srv.Serve()
	if err := srv.WaitMount(); err != nil {
		return err
	}
	logger.Debug().Str("mountpoint", mountPoint).Msg("Mounted")
	return nil
}

func (s *Server) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- s.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Unmount unmounts the filesystem, waits for in-flight requests and closes the
// composed filesystem, which releases every open archive.
func (s *Server) Unmount() error {
	if s.server != nil {
		if err := s.server.Unmount(); err != nil {
			return err
		}
		s.server.Wait()
	}
	return s.fs.Close()
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
