// Package storage writes downloaded images into the output directory.
//
// Images are streamed to a ".part" file and renamed into place once the
// transfer completes. File names follow the "<occurrence id>_<n>.<ext>"
// scheme, with the extension taken from the response content type.
//
// Usage:
//
//	manager, err := storage.NewManager("images_invasoras")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ext, err := storage.ExtensionFromContentType(resp.Header.Get("Content-Type"))
//	if err != nil {
//	    return err
//	}
//	path, size, err := manager.SaveImage(resp.Body, storage.FileName("1270744105", 1, ext))
package storage
