package catalog

// Read-only queries over the content registry. All scans walk the insertion
// ordered content index; popularity ties resolve in favour of the later
// publication because the ascending scan overwrites on >=.

// ContentList returns every content reference in publication order.
func (e *Engine) ContentList() ([][20]byte, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.state.CatalogContentList()
}

// Statistics returns the content references in publication order together
// with their total view counts.
func (e *Engine) Statistics() ([][20]byte, []uint64, error) {
	if err := e.guard(); err != nil {
		return nil, nil, err
	}
	refs, err := e.state.CatalogContentList()
	if err != nil {
		return nil, nil, err
	}
	views := make([]uint64, len(refs))
	for i, ref := range refs {
		content, ok, err := e.state.CatalogContentGet(ref)
		if err != nil {
			return nil, nil, err
		}
		if ok && content != nil {
			views[i] = content.Views
		}
	}
	return refs, views, nil
}

// NewContentList returns up to n content references, most recently published
// first. Fewer entries come back when the registry holds fewer items.
func (e *Engine) NewContentList(n int) ([][20]byte, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	refs, err := e.state.CatalogContentList()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if n > len(refs) {
		n = len(refs)
	}
	out := make([][20]byte, 0, n)
	for i := len(refs) - 1; i >= len(refs)-n; i-- {
		out = append(out, refs[i])
	}
	return out, nil
}

// LatestByGenre returns the most recently published content tagged with the
// genre, or false when none matches.
func (e *Engine) LatestByGenre(genre uint64) (*ContentInfo, bool, error) {
	return e.latest(func(c *ContentInfo) bool { return c.Genre == genre })
}

// LatestByAuthor returns the author's most recent publication, or false when
// the author has none.
func (e *Engine) LatestByAuthor(author [20]byte) (*ContentInfo, bool, error) {
	return e.latest(func(c *ContentInfo) bool { return c.Author == author })
}

// MostPopularByGenre returns the highest-viewed content tagged with the
// genre. Equal view counts resolve to the later publication.
func (e *Engine) MostPopularByGenre(genre uint64) (*ContentInfo, bool, error) {
	return e.mostPopular(func(c *ContentInfo) bool { return c.Genre == genre })
}

// MostPopularByAuthor returns the author's highest-viewed content. Equal view
// counts resolve to the later publication.
func (e *Engine) MostPopularByAuthor(author [20]byte) (*ContentInfo, bool, error) {
	return e.mostPopular(func(c *ContentInfo) bool { return c.Author == author })
}

// Content returns the registry record for a reference.
func (e *Engine) Content(ref [20]byte) (*ContentInfo, bool, error) {
	if err := e.guard(); err != nil {
		return nil, false, err
	}
	content, ok, err := e.state.CatalogContentGet(ref)
	if err != nil || !ok {
		return nil, false, err
	}
	return content.Clone(), true, nil
}

// Author returns the ledger record for an author identity.
func (e *Engine) Author(addr [20]byte) (*AuthorInfo, bool, error) {
	if err := e.guard(); err != nil {
		return nil, false, err
	}
	author, ok, err := e.state.CatalogAuthorGet(addr)
	if err != nil || !ok {
		return nil, false, err
	}
	return author.Clone(), true, nil
}

func (e *Engine) latest(match func(*ContentInfo) bool) (*ContentInfo, bool, error) {
	if err := e.guard(); err != nil {
		return nil, false, err
	}
	refs, err := e.state.CatalogContentList()
	if err != nil {
		return nil, false, err
	}
	for i := len(refs) - 1; i >= 0; i-- {
		content, ok, err := e.state.CatalogContentGet(refs[i])
		if err != nil {
			return nil, false, err
		}
		if ok && content != nil && match(content) {
			return content.Clone(), true, nil
		}
	}
	return nil, false, nil
}

func (e *Engine) mostPopular(match func(*ContentInfo) bool) (*ContentInfo, bool, error) {
	if err := e.guard(); err != nil {
		return nil, false, err
	}
	refs, err := e.state.CatalogContentList()
	if err != nil {
		return nil, false, err
	}
	var best *ContentInfo
	for _, ref := range refs {
		content, ok, err := e.state.CatalogContentGet(ref)
		if err != nil {
			return nil, false, err
		}
		if !ok || content == nil || !match(content) {
			continue
		}
		if best == nil || content.Views >= best.Views {
			best = content
		}
	}
	if best == nil {
		return nil, false, nil
	}
	return best.Clone(), true, nil
}
