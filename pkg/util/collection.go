package util

type Collection[K comparable, T interface{ GetKey() K }] struct {
	Items []T
	m     map[K]T
}

func (c *Collection[K, T]) Add(item T) {
	if c.m == nil {
		c.m = make(map[K]T)
	}
	c.Items = append(c.Items, item)
	c.m[item.GetKey()] = item
}

// Rekey refreshes the key index after item keys changed.
func (c *Collection[K, T]) Rekey() {
	c.m = make(map[K]T, len(c.Items))
	for _, item := range c.Items {
		if _, dup := c.m[item.GetKey()]; !dup {
			c.m[item.GetKey()] = item
		}
	}
}

func (c *Collection[K, T]) Get(key K) (item T, ok bool) {
	item, ok = c.m[key]
	return
}

func (c *Collection[K, T]) Find(f func(T) bool) (item T, ok bool) {
	for _, item = range c.Items {
		if f(item) {
			return item, true
		}
	}
	return
}

func (c *Collection[K, T]) Len() int {
	return len(c.Items)
}
