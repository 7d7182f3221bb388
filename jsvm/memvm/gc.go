package memvm

// finalizeObject 执行单个对象的终结流程。重复调用为空操作。
// 终结钩子只在私有槽已占用时收到负载，空槽对象静默回收。
func (c *Context) finalizeObject(o *vmObject) {
	if o.dead {
		return
	}
	o.dead = true
	if o.class != nil && o.class.def.Finalize != nil && o.privSet {
		payload := o.priv
		o.priv = nil
		o.privSet = false
		o.class.def.Finalize(payload)
	}
	o.priv = nil
	o.privSet = false
	o.props = nil
	o.names = nil
	delete(c.objects, o)
	delete(c.pins, o)
}

// Collect 从根集合标记可达对象并回收其余对象，返回回收数量。
// 根集合为 global 与 Pin 固定的对象；仅被 Go 侧引用而未固定的
// 对象会被回收，与真实引擎的 rooting 约束一致。
func (c *Context) Collect() int {
	if !c.lc.Alive() {
		return 0
	}
	c.markFromRoots()
	var dead []*vmObject
	for o := range c.objects {
		if !o.mark {
			dead = append(dead, o)
		}
	}
	for _, o := range dead {
		c.finalizeObject(o)
	}
	for o := range c.objects {
		o.mark = false
	}
	if len(dead) > 0 {
		c.logger.Debugf("mem 回收完成: reclaimed=%d live=%d", len(dead), len(c.objects))
	}
	return len(dead)
}

func (c *Context) markFromRoots() {
	for o := range c.objects {
		o.mark = false
	}
	stack := make([]*vmObject, 0, len(c.pins)+1)
	if c.global != nil {
		stack = append(stack, c.global)
	}
	for o := range c.pins {
		stack = append(stack, o)
	}
	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if o == nil || o.mark {
			continue
		}
		o.mark = true
		if o.proto != nil {
			stack = append(stack, o.proto)
		}
		if o.ctorProto != nil {
			stack = append(stack, o.ctorProto)
		}
		for _, name := range o.names {
			if child, ok := valueObject(o.props[name]); ok {
				stack = append(stack, child)
			}
		}
	}
}
