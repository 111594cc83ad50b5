package memcache

// Synchronous convenience wrappers around each Future-returning verb,
// grounded on the teacher's blocking Store/Get/Delete call shape:
// block on operation_timeout_ms instead of handing back a Future.

// SetSync is the blocking form of Set.
func (c *Client) SetSync(key string, exptimeSeconds uint32, v any) (bool, error) {
	f, err := c.Set(key, exptimeSeconds, v)
	if err != nil {
		return false, err
	}
	return f.GetTimeout(c.blockingTimeout())
}

// AddSync is the blocking form of Add.
func (c *Client) AddSync(key string, exptimeSeconds uint32, v any) (bool, error) {
	f, err := c.Add(key, exptimeSeconds, v)
	if err != nil {
		return false, err
	}
	return f.GetTimeout(c.blockingTimeout())
}

// ReplaceSync is the blocking form of Replace.
func (c *Client) ReplaceSync(key string, exptimeSeconds uint32, v any) (bool, error) {
	f, err := c.Replace(key, exptimeSeconds, v)
	if err != nil {
		return false, err
	}
	return f.GetTimeout(c.blockingTimeout())
}

// CasSync is the blocking form of Cas.
func (c *Client) CasSync(key string, exptimeSeconds uint32, v any, casID uint64) (bool, error) {
	f, err := c.Cas(key, exptimeSeconds, v, casID)
	if err != nil {
		return false, err
	}
	return f.GetTimeout(c.blockingTimeout())
}

// AppendSync is the blocking form of Append.
func (c *Client) AppendSync(key string, data []byte) (bool, error) {
	f, err := c.Append(key, data)
	if err != nil {
		return false, err
	}
	return f.GetTimeout(c.blockingTimeout())
}

// PrependSync is the blocking form of Prepend.
func (c *Client) PrependSync(key string, data []byte) (bool, error) {
	f, err := c.Prepend(key, data)
	if err != nil {
		return false, err
	}
	return f.GetTimeout(c.blockingTimeout())
}

// GetSync is the blocking form of Get.
func (c *Client) GetSync(key string) (*Item, error) {
	f, err := c.Get(key)
	if err != nil {
		return nil, err
	}
	return f.GetTimeout(c.blockingTimeout())
}

// GetsSync is the blocking form of Gets.
func (c *Client) GetsSync(key string) (*Item, error) {
	f, err := c.Gets(key)
	if err != nil {
		return nil, err
	}
	return f.GetTimeout(c.blockingTimeout())
}

// GetBulkSync is the blocking form of GetBulk.
func (c *Client) GetBulkSync(keys []string) (map[string]*Item, error) {
	f, err := c.GetBulk(keys)
	if err != nil {
		return nil, err
	}
	return f.GetTimeout(c.blockingTimeout())
}

// DeleteSync is the blocking form of Delete.
func (c *Client) DeleteSync(key string) (bool, error) {
	f, err := c.Delete(key)
	if err != nil {
		return false, err
	}
	return f.GetTimeout(c.blockingTimeout())
}

// IncrSync is the blocking form of Incr.
func (c *Client) IncrSync(key string, delta, initial uint64, exptimeSeconds uint32) (int64, error) {
	f, err := c.Incr(key, delta, initial, exptimeSeconds)
	if err != nil {
		return -1, err
	}
	return f.GetTimeout(c.blockingTimeout())
}

// DecrSync is the blocking form of Decr.
func (c *Client) DecrSync(key string, delta, initial uint64, exptimeSeconds uint32) (int64, error) {
	f, err := c.Decr(key, delta, initial, exptimeSeconds)
	if err != nil {
		return -1, err
	}
	return f.GetTimeout(c.blockingTimeout())
}

// FlushSync is the blocking form of Flush.
func (c *Client) FlushSync(delaySeconds int64) (bool, error) {
	f, err := c.Flush(delaySeconds)
	if err != nil {
		return false, err
	}
	return f.GetTimeout(c.blockingTimeout())
}

// VersionSync is the blocking form of Version.
func (c *Client) VersionSync() (map[string]string, error) {
	f, err := c.Version()
	if err != nil {
		return nil, err
	}
	return f.GetTimeout(c.blockingTimeout())
}

// StatsSync is the blocking form of Stats.
func (c *Client) StatsSync(arg string) (map[string]map[string]string, error) {
	f, err := c.Stats(arg)
	if err != nil {
		return nil, err
	}
	return f.GetTimeout(c.blockingTimeout())
}

// NoopSync is the blocking form of Noop.
func (c *Client) NoopSync() (bool, error) {
	f, err := c.Noop()
	if err != nil {
		return false, err
	}
	return f.GetTimeout(c.blockingTimeout())
}
